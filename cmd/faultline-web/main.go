// cmd/faultline-web serves the incident webhook, the read API, MCP over HTTP,
// the live WebSocket feed and Prometheus metrics.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/scrypster/faultline/internal/api/mcp"
	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/connections"
	"github.com/scrypster/faultline/internal/metrics"
	"github.com/scrypster/faultline/internal/notify"
	"github.com/scrypster/faultline/internal/server"
	"github.com/scrypster/faultline/internal/triage"
	"github.com/scrypster/faultline/web/handlers"
)

var version = "1.0.0"

func main() {
	log.SetPrefix("faultline-web: ")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, cleanup, err := start(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	log.Printf("faultline-web running at http://%s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
	cleanup()
}

// start wires storage, the triage service and the live feed, and starts the
// HTTP server. The returned cleanup stops the event watcher and closes the
// store; call it after ctx is cancelled.
func start(ctx context.Context, cfg *config.Config) (string, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := connections.Open(cfg, m)
	if err != nil {
		return "", nil, err
	}

	hub := handlers.NewWebSocketHub(cfg.Server.CORSOrigins)
	svc := triage.NewService(store, store,
		triage.WithStrictValidation(cfg.Ingest.StrictValidation),
		triage.WithNotifier(hub),
		triage.WithMetrics(m),
	)

	// Events recorded by faultline-mcp processes arrive as files.
	var watcher *notify.EventWatcher
	if cfg.Notify.EventFiles {
		watcher = notify.NewEventWatcher(cfg.Storage.DataPath, hub)
		if err := watcher.Start(); err != nil {
			log.Printf("Event watcher disabled: %v", err)
			watcher = nil
		}
	}

	addr, _, err := server.Start(ctx, cfg, server.Options{
		Service:  svc,
		Store:    store,
		MCP:      mcp.NewServer(svc, mcp.WithServerInfo("faultline", version)),
		Hub:      hub,
		Gatherer: reg,
		Version:  version,
	})
	if err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		_ = store.Close()
		return "", nil, err
	}

	cleanup := func() {
		if watcher != nil {
			watcher.Stop()
		}
		if err := store.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}
	return addr, cleanup, nil
}
