package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foiacoach/backend/internal/adapters/database"
	"github.com/foiacoach/backend/internal/adapters/events"
	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/internal/application/services"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	"github.com/foiacoach/backend/internal/infrastructure/clients/redis"
	"github.com/foiacoach/backend/internal/infrastructure/observability"
	"github.com/foiacoach/backend/pkg/config"
)

func main() {
	var providerName string
	var state string
	var all bool
	var force bool
	var dryRun bool

	flag.StringVar(&providerName, "provider", "", "Provider to sync (default: configured provider)")
	flag.StringVar(&state, "state", "", "Two-letter state filter (e.g. CO)")
	flag.BoolVar(&all, "all", false, "Sync every registered provider")
	flag.BoolVar(&force, "force", false, "Re-queue records that are already ready")
	flag.BoolVar(&dryRun, "dry-run", false, "Reconcile records without uploading")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger("foia-coach-sync", os.Getenv("APP_ENV"))

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	// Events are optional for a one-shot sync run
	var eventBus providers.EventBus
	if redisClient, err := redis.NewClient(&cfg.Redis); err == nil {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
	} else {
		log.Printf("Warning: Redis unavailable, lifecycle events disabled: %v", err)
	}

	resourceRepo := database.NewResourceAdapter(pgClient)
	uploadRepo := database.NewUploadAdapter(pgClient)
	registry := rag.NewRegistry(cfg)

	svc := services.NewSyncService(resourceRepo, uploadRepo, registry, eventBus, nil, &cfg.Resources)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	targets := []string{providerName}
	if all {
		targets = rag.ListAvailableProviders()
	}

	anyFailed := false
	for _, target := range targets {
		summary, err := svc.SyncProvider(ctx, target, state, force, dryRun)
		if err != nil {
			log.Printf("Sync failed for provider %q: %v", target, err)
			anyFailed = true
			continue
		}

		name := target
		if name == "" {
			name = cfg.Provider.Default
		}
		log.Printf("Provider %s: created=%d updated=%d skipped=%d uploaded=%d failed=%d",
			name, summary.Created, summary.Updated, summary.Skipped, summary.Uploaded, summary.Failed)
		if summary.Failed > 0 {
			anyFailed = true
		}
	}

	if anyFailed {
		os.Exit(1)
	}
}
