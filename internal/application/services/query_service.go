package services

import (
	"context"
	"encoding/json"

	"github.com/foiacoach/backend/internal/adapters/cache"
	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/infrastructure/observability"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// answerCacheTTLSeconds bounds how long a cached answer is served before the
// provider is asked again; synced documents change rarely.
const answerCacheTTLSeconds = 3600

// QueryService answers questions against a provider's document store, with a
// Redis-backed cache in front so repeated questions do not spend vendor quota.
type QueryService struct {
	registry ProviderGetter
	cache    providers.CacheProvider
	metrics  *observability.Metrics
}

// NewQueryService creates a new query service. cache may be nil; every
// question then goes to the provider.
func NewQueryService(registry ProviderGetter, cacheProvider providers.CacheProvider, metrics *observability.Metrics) *QueryService {
	return &QueryService{
		registry: registry,
		cache:    cacheProvider,
		metrics:  metrics,
	}
}

// Ask answers a question using the named provider (or the configured default
// when providerName is empty).
func (s *QueryService) Ask(ctx context.Context, providerName, question string) (*entities.QueryAnswer, error) {
	if question == "" {
		return nil, apperrors.NewValidationError("question is required")
	}

	provider, err := s.registry.Get(providerName, true)
	if err != nil {
		return nil, err
	}

	key := cache.AnswerKey(provider.Name(), question)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var answer entities.QueryAnswer
			if err := json.Unmarshal(data, &answer); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, key)
				return &answer, nil
			}
		}
		observability.RecordCacheMiss(ctx, s.metrics, key)
	}

	answer, err := provider.Query(ctx, question)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(answer); err == nil {
			if err := s.cache.Set(ctx, key, data, answerCacheTTLSeconds); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).
					Str("cache_key", key).
					Msg("failed to cache answer")
			}
		}
	}

	return answer, nil
}
