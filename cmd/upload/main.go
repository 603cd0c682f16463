package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foiacoach/backend/internal/adapters/database"
	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/internal/application/services"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	"github.com/foiacoach/backend/internal/infrastructure/observability"
	"github.com/foiacoach/backend/pkg/config"
)

func main() {
	var resourceID string
	var providerName string
	var force bool

	flag.StringVar(&resourceID, "resource", "", "Resource ID to upload (required)")
	flag.StringVar(&providerName, "provider", "", "Provider to upload to (default: configured provider)")
	flag.BoolVar(&force, "force", false, "Re-upload even when already ready")
	flag.Parse()

	if resourceID == "" {
		log.Fatal("-resource is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger("foia-coach-upload", os.Getenv("APP_ENV"))

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	resourceRepo := database.NewResourceAdapter(pgClient)
	uploadRepo := database.NewUploadAdapter(pgClient)
	registry := rag.NewRegistry(cfg)

	svc := services.NewSyncService(resourceRepo, uploadRepo, registry, nil, nil, &cfg.Resources)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.UploadSingle(ctx, resourceID, providerName, force); err != nil {
		log.Printf("Upload failed: %v", err)
		os.Exit(1)
	}

	log.Printf("Resource %s uploaded", resourceID)
}
