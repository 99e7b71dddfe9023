// cmd/faultline-mcp is the entry point for the faultline MCP (Model Context
// Protocol) server. Agents call it to fingerprint error logs, look up and save
// known errors, and record incidents.
//
// Startup sequence:
//  1. Load configuration (defaults, FAULTLINE_CONFIG file, environment).
//  2. Open the configured store behind the circuit breaker.
//  3. Create the triage service, writing event files for faultline-web.
//  4. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/faultline/internal/api/mcp"
	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/connections"
	"github.com/scrypster/faultline/internal/notify"
	"github.com/scrypster/faultline/internal/triage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	check := flag.Bool("check", false, "Verify the configured store is reachable and exit")
	flag.Parse()

	// Redirect the default logger to stderr so that any incidental log calls
	// never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("faultline-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *check {
		if err := connections.Test(context.Background(), cfg); err != nil {
			log.Fatalf("store check failed: %v", err)
		}
		log.Printf("%s store is reachable", cfg.Storage.Engine)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		// Context cancellation lands here too; it is informational only.
		log.Printf("transport stopped: %v", err)
	}
}

// run opens the store and serves MCP on in/out until ctx is done or in
// reaches EOF.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	store, err := connections.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	opts := []triage.Option{
		triage.WithStrictValidation(cfg.Ingest.StrictValidation),
		triage.WithLogger(log.Default()),
	}
	if cfg.Notify.EventFiles {
		opts = append(opts, triage.WithNotifier(notify.NewEventWriter(cfg.Storage.DataPath)))
	}
	svc := triage.NewService(store, store, opts...)

	srv := mcp.NewServer(svc,
		mcp.WithLogger(log.Default()),
		mcp.WithServerInfo("faultline", version),
	)
	transport := mcp.NewStdioTransport(srv, in, out)

	log.Printf("ready (%s store), serving JSON-RPC 2.0 on stdin/stdout", cfg.Storage.Engine)
	return transport.Serve(ctx)
}
