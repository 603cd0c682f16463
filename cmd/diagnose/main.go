package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/internal/application/services"
	"github.com/foiacoach/backend/pkg/config"
)

func main() {
	var providerName string
	var all bool
	var list bool
	var checkStore bool
	var query string

	flag.StringVar(&providerName, "provider", "", "Provider to diagnose (default: configured provider)")
	flag.BoolVar(&all, "all", false, "Diagnose every registered provider")
	flag.BoolVar(&list, "list", false, "List registered providers and exit")
	flag.BoolVar(&checkStore, "store", false, "Also resolve the document store")
	flag.StringVar(&query, "query", "", "Run a probe query (requires the real API gate)")
	flag.Parse()

	if list {
		for _, name := range rag.ListAvailableProviders() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := rag.NewRegistry(cfg)
	svc := services.NewDiagnosticService(registry, registry, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var reports []*services.DiagnosticReport
	if all {
		reports = svc.DiagnoseAll(ctx, rag.ListAvailableProviders())
	} else {
		reports = append(reports, svc.Diagnose(ctx, providerName, checkStore, query))
	}

	healthy := true
	for _, report := range reports {
		fmt.Printf("provider %s:\n", report.Provider)
		for _, step := range report.Steps {
			status := "PASS"
			if step.Skipped {
				status = "SKIP"
			} else if !step.Passed {
				status = "FAIL"
			}
			line := fmt.Sprintf("  [%s] %s", status, step.Name)
			if step.Detail != "" {
				line += ": " + step.Detail
			}
			fmt.Println(line)
		}
		if !report.Healthy {
			healthy = false
		}
	}

	if !healthy {
		os.Exit(1)
	}
}
