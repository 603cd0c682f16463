package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/pkg/config"
)

func main() {
	var providerName string
	var name string

	flag.StringVar(&providerName, "provider", "", "Provider to create the store on (default: configured provider)")
	flag.StringVar(&name, "name", "", "Store display name (default: configured store name)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := rag.NewRegistry(cfg)

	provider, err := registry.Get(providerName, false)
	if err != nil {
		log.Fatalf("Failed to construct provider: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	storeID, err := provider.GetOrCreateStore(ctx, name)
	if err != nil {
		log.Printf("Failed to create store: %v", err)
		os.Exit(1)
	}

	log.Printf("Store ready on provider %s: %s", provider.Name(), storeID)
}
