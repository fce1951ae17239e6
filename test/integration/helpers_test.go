// Package integration wires the whole stack together: YAML config
// loading, provider construction, the fallback chain, and the streaming
// contract, against stub backend servers.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sublate/sublate/pkg/config"
)

// chatBackend is a minimal Chat Completions stub translating "Hello" to
// "Bonjour". failures sets how many leading requests fail with 503.
type chatBackend struct {
	failures atomic.Int32
	calls    atomic.Int32
}

func (b *chatBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	if b.failures.Load() > 0 {
		b.failures.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"backend down"}}`)
		return
	}

	var req struct {
		Stream   bool `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text := "Bonjour"

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, delta := range []string{text[:3], text[3:]} {
			finish := "null"
			if i == 1 {
				finish = `"stop"`
			}
			fmt.Fprintf(w, `data: {"choices":[{"delta":{"content":%q},"finish_reason":%s}]}`+"\n\n", delta, finish)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, text)
}

// deeplBackend is a minimal DeepL stub.
type deeplBackend struct {
	calls atomic.Int32
}

func (b *deeplBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	if r.URL.Path != "/translate" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, `{"translations":[{"detected_source_language":"EN","text":"Bonjour (secours)"}]}`)
}

// loadChainConfig writes and loads a YAML config pointing the openai
// primary and deepl secondary at the given stub URLs.
func loadChainConfig(t *testing.T, openaiURL, deeplURL string) *config.Config {
	t.Helper()
	yaml := strings.ReplaceAll(`
translator:
  primary: openai
  secondary: deepl
  max_retries: 1
  retry_base_delay: 1ms
providers:
  openai:
    base_url: OPENAI_URL
    api_key: test
    model: mock-model
  deepl:
    auth_key: test
    base_url: DEEPL_URL
`, "OPENAI_URL", openaiURL)
	yaml = strings.ReplaceAll(yaml, "DEEPL_URL", deeplURL)

	path := filepath.Join(t.TempDir(), "sublate.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func startBackends(t *testing.T, chat *chatBackend, deepl *deeplBackend) (string, string) {
	t.Helper()
	chatSrv := httptest.NewServer(chat)
	t.Cleanup(chatSrv.Close)
	deeplSrv := httptest.NewServer(deepl)
	t.Cleanup(deeplSrv.Close)
	return chatSrv.URL, deeplSrv.URL
}
