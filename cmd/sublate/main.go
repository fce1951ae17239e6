// Command sublate translates subtitle text through the configured
// backend chain.
//
// The subtitle text is read from the file argument, or stdin when no
// argument is given. Configuration is loaded from sublate.yaml (see
// pkg/config for discovery order and SUBLATE_* overrides).
//
// Usage:
//
//	sublate -target French subtitles.srt
//	sublate -target French -stream < subtitles.srt
//	sublate -count subtitles.srt
//	sublate -models
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sublate/sublate/pkg/config"
	"github.com/sublate/sublate/pkg/debug"
	"github.com/sublate/sublate/pkg/provider"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sublate failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path")
	target := flag.String("target", "", "target language")
	source := flag.String("source", "", "source language (default: auto-detect)")
	streaming := flag.Bool("stream", false, "print partial output as it arrives")
	count := flag.Bool("count", false, "count the tokens of the input and exit")
	models := flag.Bool("models", false, "list available models and exit")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9091)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)

	prov, err := config.BuildProvider(cfg)
	if err != nil {
		return err
	}
	defer prov.Close()

	if *metricsAddr != "" && cfg.Observability.Metrics.Enabled {
		go serveMetrics(*metricsAddr, cfg.Observability.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *models {
		for _, m := range prov.ListModels(ctx) {
			if m.Name != "" {
				fmt.Printf("%s\t%s\n", m.ID, m.Name)
			} else {
				fmt.Println(m.ID)
			}
		}
		return nil
	}

	content, err := readInput(flag.Arg(0))
	if err != nil {
		return err
	}

	req := &provider.Request{
		Content:        content,
		SourceLanguage: *source,
		TargetLanguage: *target,
	}

	if *count {
		n, err := prov.CountTokens(ctx, req)
		if err == provider.ErrNoCounter {
			fmt.Printf("%d (estimated)\n", prov.EstimateTokens(content))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}

	if *target == "" {
		return fmt.Errorf("-target is required")
	}

	if *streaming {
		return translateStreaming(ctx, prov, req)
	}

	res, err := prov.Translate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	return nil
}

// translateStreaming prints each partial's new suffix as it arrives.
// Partials grow monotonically, so the suffix is always well defined.
func translateStreaming(ctx context.Context, prov provider.Provider, req *provider.Request) error {
	printed := 0
	_, err := provider.StreamWithCallback(ctx, prov, req, func(text string) {
		fmt.Print(text[printed:])
		printed = len(text)
	})
	if err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func serveMetrics(addr, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	slog.Info("metrics listening", "addr", addr, "path", path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
