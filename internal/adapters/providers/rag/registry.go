package rag

import (
	"fmt"
	"sync"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/infrastructure/clients/gemini"
	"github.com/foiacoach/backend/internal/infrastructure/clients/openai"
	"github.com/foiacoach/backend/pkg/config"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// availableProviders is the closed set of registered provider names.
var availableProviders = []string{
	config.ProviderMock,
	config.ProviderOpenAI,
	config.ProviderGemini,
}

// ListAvailableProviders enumerates the statically registered provider names.
func ListAvailableProviders() []string {
	out := make([]string, len(availableProviders))
	copy(out, availableProviders)
	return out
}

// Registry resolves provider names to configured adapter instances, caching
// one instance per name. The cache is explicit state owned by the registry,
// not hidden module state, so tests construct their own registries.
type Registry struct {
	cfg *config.Config

	mu    sync.RWMutex
	cache map[string]providers.RAGProvider
}

// NewRegistry creates a provider registry over the given configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:   cfg,
		cache: make(map[string]providers.RAGProvider),
	}
}

// Get resolves name (or the configured default when empty) to a provider
// instance. Cached instances are reused unless useCache is false. An invalid
// configuration fails with a PROVIDER_CONFIG error and is never cached.
func (r *Registry) Get(name string, useCache bool) (providers.RAGProvider, error) {
	if name == "" {
		name = r.cfg.Provider.Default
	}

	if useCache {
		r.mu.RLock()
		cached, ok := r.cache[name]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	provider, err := r.build(name)
	if err != nil {
		return nil, err
	}

	if useCache {
		r.mu.Lock()
		r.cache[name] = provider
		r.mu.Unlock()
	}

	return provider, nil
}

// Clear resets all cached instances; used after configuration changes and
// between tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.cache = make(map[string]providers.RAGProvider)
	r.mu.Unlock()
}

// ValidateConfig reports whether the named provider's configuration is usable,
// without constructing or caching anything.
func (r *Registry) ValidateConfig(name string) (bool, string) {
	if name == "" {
		name = r.cfg.Provider.Default
	}

	switch name {
	case config.ProviderMock:
		return true, ""
	case config.ProviderOpenAI:
		if r.cfg.OpenAI.APIKey == "" {
			return false, "OPENAI_API_KEY is not set"
		}
		if r.cfg.OpenAI.Model == "" {
			return false, "OPENAI_MODEL is not set"
		}
		return true, ""
	case config.ProviderGemini:
		if r.cfg.Gemini.APIKey == "" {
			return false, "GEMINI_API_KEY is not set"
		}
		if r.cfg.Gemini.Model == "" {
			return false, "GEMINI_MODEL is not set"
		}
		return true, ""
	default:
		return false, fmt.Sprintf("unknown provider %q, available: %v", name, availableProviders)
	}
}

func (r *Registry) build(name string) (providers.RAGProvider, error) {
	if ok, msg := r.ValidateConfig(name); !ok {
		return nil, apperrors.NewProviderConfigError(name, msg)
	}

	switch name {
	case config.ProviderMock:
		return NewMockAdapter(), nil
	case config.ProviderOpenAI:
		client, err := openai.NewClient(&r.cfg.OpenAI)
		if err != nil {
			return nil, apperrors.NewProviderConfigError(name, err.Error())
		}
		return NewOpenAIAdapter(client, r.cfg), nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(&r.cfg.Gemini)
		if err != nil {
			return nil, apperrors.NewProviderConfigError(name, err.Error())
		}
		return NewGeminiAdapter(client, r.cfg), nil
	default:
		return nil, apperrors.NewProviderConfigError(name, "unknown provider")
	}
}

// cannedAnswer is the short-circuit response used when the real vendor API is
// gated off.
func cannedAnswer(provider, question string) *entities.QueryAnswer {
	return &entities.QueryAnswer{
		Answer: fmt.Sprintf(
			"The %s API is disabled in this environment (RAG_REAL_API_ENABLED=false). Question received: %s",
			provider, question,
		),
		Provider: provider,
	}
}
