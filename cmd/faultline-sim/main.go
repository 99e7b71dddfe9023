// cmd/faultline-sim posts synthetic error events to a faultline webhook so the
// triage pipeline can be exercised end to end.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/simulator"
)

func main() {
	log.SetPrefix("faultline-sim: ")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := simulator.NewSender(cfg.Simulator.TargetURL, cfg.Simulator.Interval,
		simulator.WithBearerToken(cfg.Security.APIToken),
		simulator.WithLogger(log.Default()),
	)
	sent := sender.Run(ctx, simulator.NewGenerator(cfg.Simulator.Seed, nil), cfg.Simulator.Count)
	log.Printf("simulator stopped after %d events", sent)
}

// parseFlags lets command-line flags override the loaded simulator settings.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("faultline-sim", flag.ContinueOnError)
	fs.StringVar(&cfg.Simulator.TargetURL, "target", cfg.Simulator.TargetURL, "Webhook URL receiving events")
	fs.DurationVar(&cfg.Simulator.Interval, "interval", cfg.Simulator.Interval, "Pause between events")
	fs.IntVar(&cfg.Simulator.Count, "count", cfg.Simulator.Count, "Events to send (0 for unlimited)")
	fs.Int64Var(&cfg.Simulator.Seed, "seed", cfg.Simulator.Seed, "Random seed (0 for time based)")
	return fs.Parse(args)
}
