package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sublate/sublate/pkg/provider"
)

// noSleep replaces the backoff sleep and records requested delays.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_RetryTermination(t *testing.T) {
	// A backend that always raises a retryable error is attempted exactly
	// MaxRetries+1 times.
	var delays []time.Duration
	c := &Controller{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		sleep:      noSleep(&delays),
	}

	attempts := 0
	_, err := Do(context.Background(), c, func(ctx context.Context) (string, error) {
		attempts++
		return "", provider.NewError(provider.KindServiceUnavailable, "stub", "down")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if provider.KindOf(err) != provider.KindServiceUnavailable {
		t.Errorf("final error kind = %s", provider.KindOf(err))
	}
}

func TestDo_ExponentialDelays(t *testing.T) {
	var delays []time.Duration
	c := &Controller{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		sleep:      noSleep(&delays),
	}

	Do(context.Background(), c, func(ctx context.Context) (int, error) {
		return 0, provider.NewError(provider.KindRateLimited, "stub", "429")
	})

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDo_FatalShortCircuit(t *testing.T) {
	// A non-retryable error on the first attempt results in exactly one
	// attempt, regardless of MaxRetries.
	var delays []time.Duration
	c := &Controller{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		sleep:      noSleep(&delays),
	}

	attempts := 0
	_, err := Do(context.Background(), c, func(ctx context.Context) (string, error) {
		attempts++
		return "", provider.NewError(provider.KindFatal, "stub", "bad credentials")
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(delays) != 0 {
		t.Errorf("slept %v, want no sleeps", delays)
	}
	if provider.KindOf(err) != provider.KindFatal {
		t.Errorf("error kind = %s", provider.KindOf(err))
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var delays []time.Duration
	c := &Controller{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		sleep:      noSleep(&delays),
	}

	attempts := 0
	got, err := Do(context.Background(), c, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", provider.NewError(provider.KindTransientNetwork, "stub", "reset")
		}
		return "Bonjour", nil
	})

	if err != nil {
		t.Fatal(err)
	}
	if got != "Bonjour" {
		t.Errorf("result = %q", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_UnclassifiedErrorNotRetried(t *testing.T) {
	c := New(3, time.Millisecond)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	attempts := 0
	Do(context.Background(), c, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("plain failure")
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDo_TimeBudgetAttemptDeadline(t *testing.T) {
	// With a time budget, each attempt gets a deadline no smaller than
	// MinAttemptTimeout even when the budget is nearly spent.
	var delays []time.Duration
	c := &Controller{
		MaxRetries:        2,
		BaseDelay:         5 * time.Millisecond,
		TimeBudget:        50 * time.Millisecond,
		MinAttemptTimeout: 20 * time.Millisecond,
		sleep:             noSleep(&delays),
	}

	var deadlines []time.Duration
	Do(context.Background(), c, func(ctx context.Context) (int, error) {
		dl, ok := ctx.Deadline()
		if !ok {
			t.Fatal("attempt context has no deadline despite time budget")
		}
		deadlines = append(deadlines, time.Until(dl))
		return 0, provider.NewError(provider.KindTransientNetwork, "stub", "timeout")
	})

	if len(deadlines) != 3 {
		t.Fatalf("got %d attempts, want 3", len(deadlines))
	}
	for i, d := range deadlines {
		if d < c.MinAttemptTimeout-5*time.Millisecond {
			t.Errorf("attempt %d deadline %v below MinAttemptTimeout floor", i, d)
		}
		if d > c.TimeBudget+5*time.Millisecond {
			t.Errorf("attempt %d deadline %v exceeds total budget", i, d)
		}
	}
}

func TestDo_DelayCappedByBudget(t *testing.T) {
	var delays []time.Duration
	c := &Controller{
		MaxRetries: 4,
		BaseDelay:  40 * time.Millisecond,
		TimeBudget: 100 * time.Millisecond,
		sleep:      noSleep(&delays),
	}

	Do(context.Background(), c, func(ctx context.Context) (int, error) {
		return 0, provider.NewError(provider.KindTransientNetwork, "stub", "timeout")
	})

	for i, d := range delays {
		if d > 100*time.Millisecond {
			t.Errorf("delay[%d] = %v exceeds total budget", i, d)
		}
		if d < 0 {
			t.Errorf("delay[%d] = %v negative", i, d)
		}
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var retried []int
	c := &Controller{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(attempt int, err error) { retried = append(retried, attempt) },
		sleep:      func(context.Context, time.Duration) error { return nil },
	}

	Do(context.Background(), c, func(ctx context.Context) (int, error) {
		return 0, provider.NewError(provider.KindRateLimited, "stub", "429")
	})

	if len(retried) != 2 || retried[0] != 0 || retried[1] != 1 {
		t.Errorf("OnRetry attempts = %v, want [0 1]", retried)
	}
}

func TestDo_ContextCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		MaxRetries: 5,
		BaseDelay:  time.Hour, // real sleep would hang without cancellation
	}

	attempts := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		Do(ctx, c, func(ctx context.Context) (int, error) {
			attempts++
			return 0, provider.NewError(provider.KindTransientNetwork, "stub", "reset")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
