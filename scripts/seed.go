package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/foiacoach/backend/internal/adapters/database"
	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	"github.com/foiacoach/backend/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS jurisdiction_resources (
	id UUID PRIMARY KEY,
	state CHAR(2) NOT NULL,
	name TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	description TEXT,
	file_path TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'text/markdown',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_jurisdiction_resources_state
	ON jurisdiction_resources (state, sort_order);

CREATE TABLE IF NOT EXISTS resource_provider_uploads (
	id UUID PRIMARY KEY,
	resource_id UUID NOT NULL REFERENCES jurisdiction_resources (id),
	provider TEXT NOT NULL,
	index_status TEXT NOT NULL DEFAULT 'not_uploaded',
	provider_file_id TEXT,
	provider_store_id TEXT,
	provider_metadata JSONB NOT NULL DEFAULT '{}',
	error_message VARCHAR(1000),
	indexed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (resource_id, provider)
);

CREATE INDEX IF NOT EXISTS idx_resource_provider_uploads_status
	ON resource_provider_uploads (provider, index_status);
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			DROP TABLE IF EXISTS resource_provider_uploads;
			DROP TABLE IF EXISTS jurisdiction_resources;
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	if _, err := pgClient.DB().ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("Schema ready")

	resourceRepo := database.NewResourceAdapter(pgClient)

	resources := []*entities.JurisdictionResource{
		{
			State:        "CO",
			Name:         "CORA Request Guide",
			ResourceType: entities.ResourceTypeLawGuide,
			Description:  "Overview of the Colorado Open Records Act: scope, deadlines, fees.",
			FilePath:     "co/cora_request_guide.md",
			SortOrder:    1,
		},
		{
			State:        "CO",
			Name:         "CORA Exemptions",
			ResourceType: entities.ResourceTypeExemptions,
			Description:  "Records exempt from disclosure under CORA and how to argue around them.",
			FilePath:     "co/cora_exemptions.md",
			SortOrder:    2,
		},
		{
			State:        "CO",
			Name:         "Colorado Agency Contacts",
			ResourceType: entities.ResourceTypeAgencyInfo,
			Description:  "Records custodians for major Colorado state agencies.",
			FilePath:     "co/agency_contacts.md",
			SortOrder:    3,
		},
		{
			State:        "NY",
			Name:         "FOIL Request Guide",
			ResourceType: entities.ResourceTypeLawGuide,
			Description:  "Overview of New York's Freedom of Information Law.",
			FilePath:     "ny/foil_request_guide.md",
			SortOrder:    1,
		},
		{
			State:        "NY",
			Name:         "FOIL Appeal Tips",
			ResourceType: entities.ResourceTypeRequestTips,
			Description:  "How to appeal a FOIL denial, with sample language.",
			FilePath:     "ny/foil_appeal_tips.md",
			SortOrder:    2,
		},
	}

	seeded := 0
	for _, resource := range resources {
		resource.ID = uuid.New().String()
		resource.ContentType = "text/markdown"
		resource.IsActive = true

		if err := resource.Validate(); err != nil {
			log.Fatalf("Invalid seed resource %s: %v", resource.Name, err)
		}
		if err := resourceRepo.Create(ctx, resource); err != nil {
			log.Printf("Warning: failed to seed %s: %v", resource.Name, err)
			continue
		}
		seeded++
	}

	log.Printf("Seeded %d resources", seeded)
}
