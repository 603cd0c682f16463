package entities

import (
	"fmt"
	"time"
)

// ResourceType categorizes a jurisdiction legal resource
type ResourceType string

const (
	ResourceTypeLawGuide    ResourceType = "law_guide"
	ResourceTypeRequestTips ResourceType = "request_tips"
	ResourceTypeExemptions  ResourceType = "exemptions"
	ResourceTypeAgencyInfo  ResourceType = "agency_info"
	ResourceTypeCaseLaw     ResourceType = "case_law"
	ResourceTypeGeneral     ResourceType = "general"
)

// ValidResourceTypes lists every accepted resource type.
var ValidResourceTypes = []ResourceType{
	ResourceTypeLawGuide,
	ResourceTypeRequestTips,
	ResourceTypeExemptions,
	ResourceTypeAgencyInfo,
	ResourceTypeCaseLaw,
	ResourceTypeGeneral,
}

// JurisdictionResource is a legal-resource document scoped to one jurisdiction.
// Resources are soft-deactivated via IsActive and never physically deleted
// while upload records reference them.
type JurisdictionResource struct {
	ID           string       `json:"id" db:"id"`
	State        string       `json:"state" db:"state"`
	Name         string       `json:"name" db:"name"`
	ResourceType ResourceType `json:"resource_type" db:"resource_type"`
	Description  string       `json:"description" db:"description"`
	FilePath     string       `json:"file_path" db:"file_path"`
	ContentType  string       `json:"content_type" db:"content_type"`
	IsActive     bool         `json:"is_active" db:"is_active"`
	SortOrder    int          `json:"sort_order" db:"sort_order"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Validate checks the resource's required fields.
func (r *JurisdictionResource) Validate() error {
	if len(r.State) != 2 {
		return fmt.Errorf("state must be a two-letter abbreviation, got %q", r.State)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, t := range ValidResourceTypes {
		if r.ResourceType == t {
			return nil
		}
	}
	return fmt.Errorf("unknown resource type %q", r.ResourceType)
}

// DisplayName is the label attached to the document on the vendor side.
func (r *JurisdictionResource) DisplayName() string {
	return fmt.Sprintf("%s-%s-%s", r.State, r.ResourceType, r.Name)
}
