package services

import (
	"context"
	"fmt"

	"github.com/foiacoach/backend/pkg/config"
)

// DiagnosticStep is one pass/fail line in a provider diagnosis run.
type DiagnosticStep struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// DiagnosticReport is the outcome of diagnosing one provider.
type DiagnosticReport struct {
	Provider string           `json:"provider"`
	Steps    []DiagnosticStep `json:"steps"`
	Healthy  bool             `json:"healthy"`
}

// ConfigValidator is the side-effect-free validation surface of the registry.
type ConfigValidator interface {
	ValidateConfig(name string) (bool, string)
}

// DiagnosticService runs a fixed step sequence against a provider: validate
// configuration, construct the adapter, read its info, then optionally touch
// the store and run a probe query when the real API gate is on.
type DiagnosticService struct {
	registry  ProviderGetter
	validator ConfigValidator
	cfg       *config.Config
}

// NewDiagnosticService creates a new diagnostic service
func NewDiagnosticService(registry ProviderGetter, validator ConfigValidator, cfg *config.Config) *DiagnosticService {
	return &DiagnosticService{
		registry:  registry,
		validator: validator,
		cfg:       cfg,
	}
}

// Diagnose runs the step sequence for one provider. checkStore also resolves
// the document store; probeQuery additionally runs a test question, but only
// when the real API gate is enabled (a canned short-circuit proves nothing).
func (s *DiagnosticService) Diagnose(ctx context.Context, providerName string, checkStore bool, probeQuery string) *DiagnosticReport {
	if providerName == "" {
		providerName = s.cfg.Provider.Default
	}
	report := &DiagnosticReport{Provider: providerName, Healthy: true}

	fail := func(name, detail string) {
		report.Steps = append(report.Steps, DiagnosticStep{Name: name, Passed: false, Detail: detail})
		report.Healthy = false
	}
	pass := func(name, detail string) {
		report.Steps = append(report.Steps, DiagnosticStep{Name: name, Passed: true, Detail: detail})
	}
	skip := func(name, detail string) {
		report.Steps = append(report.Steps, DiagnosticStep{Name: name, Passed: true, Skipped: true, Detail: detail})
	}

	ok, msg := s.validator.ValidateConfig(providerName)
	if !ok {
		fail("validate config", msg)
		return report
	}
	pass("validate config", "")

	provider, err := s.registry.Get(providerName, false)
	if err != nil {
		fail("construct provider", err.Error())
		return report
	}
	pass("construct provider", "")

	info := provider.Info()
	pass("provider info", fmt.Sprintf("model=%s real_api=%t api_key=%s", info.Model, info.RealAPIEnabled, info.APIKey))

	if checkStore {
		storeID, err := provider.GetOrCreateStore(ctx, s.cfg.Provider.StoreName)
		if err != nil {
			fail("resolve store", err.Error())
			return report
		}
		pass("resolve store", "store_id="+storeID)
	} else {
		skip("resolve store", "not requested")
	}

	if probeQuery == "" {
		skip("probe query", "not requested")
		return report
	}
	if !s.cfg.Provider.RealAPIEnabled {
		skip("probe query", "real API gate is off")
		return report
	}

	answer, err := provider.Query(ctx, probeQuery)
	if err != nil {
		fail("probe query", err.Error())
		return report
	}
	pass("probe query", fmt.Sprintf("answer length=%d citations=%d", len(answer.Answer), len(answer.Citations)))

	return report
}

// DiagnoseAll diagnoses every registered provider without store or query probes.
func (s *DiagnosticService) DiagnoseAll(ctx context.Context, names []string) []*DiagnosticReport {
	reports := make([]*DiagnosticReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, s.Diagnose(ctx, name, false, ""))
	}
	return reports
}
