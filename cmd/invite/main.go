// Package main generates invitation tokens directly against the Postgres store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/service"
	"github.com/post-analyzer/internal/storage"
)

func main() {
	var (
		planName = flag.String("plan", "", "Name of the plan the token assigns, e.g. Pro")
		planID   = flag.String("plan-id", "", "ID of the plan the token assigns (overrides -plan)")
		ttl      = flag.Duration("ttl", 0, "Token lifetime (defaults to INVITATION_TTL)")
		count    = flag.Int("count", 1, "Number of tokens to generate")
	)
	flag.Parse()

	if *planName == "" && *planID == "" {
		fmt.Fprintln(os.Stderr, "usage: invite -plan <name> | -plan-id <id> [-ttl 168h] [-count n]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.Driver != config.StoreDriverPostgres {
		log.Fatalf("Tokens generated against the %s store would be lost; use STORE_DRIVER=postgres", cfg.Database.Driver)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer backend.Close()

	target := *planID
	if target == "" {
		plan, err := backend.Store.Plans().GetByName(ctx, *planName)
		if err != nil {
			log.Fatalf("Failed to find plan %q: %v", *planName, err)
		}
		target = plan.ID
	}

	ledger := service.NewInvitationLedger(backend.Store, cfg.Invitation.DefaultTTL)
	enc := json.NewEncoder(os.Stdout)
	for i := 0; i < *count; i++ {
		token, err := ledger.Generate(ctx, target, *ttl)
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		if err := enc.Encode(token); err != nil {
			log.Fatalf("Failed to write token: %v", err)
		}
	}
}
