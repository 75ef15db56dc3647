package reviewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medipatient-api-server/internal/domain"
)

// Resilient wraps the reviewer client with a circuit breaker and a
// two-tier opinion cache: an in-process LRU in front of an optional
// Redis tier. Treatment plan calls share the breaker but are not cached;
// plans depend on the possibly-overridden final label, which is already
// deterministic downstream of a cached review.
type Resilient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	memory  *lru.Cache
	remote  *OpinionCache // nil when Redis is not configured
	logger  *logrus.Logger
}

// NewResilient builds the resilient wrapper. A Redis URL in cacheConfig
// enables the distributed tier; connection failure disables it with a
// warning rather than failing startup.
func NewResilient(client *Client, cacheConfig domain.CacheConfig, logger *logrus.Logger) (*Resilient, error) {
	size := cacheConfig.MemorySize
	if size <= 0 {
		size = 512
	}
	memory, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	var remote *OpinionCache
	if cacheConfig.RedisURL != "" {
		remote, err = NewOpinionCache(cacheConfig)
		if err != nil {
			logger.WithError(err).Warn("Redis opinion cache unavailable, using memory cache only")
			remote = nil
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ClinicalReviewer",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Resilient{
		client:  client,
		breaker: breaker,
		memory:  memory,
		remote:  remote,
		logger:  logger,
	}, nil
}

// Available reports whether the underlying client has credentials.
func (r *Resilient) Available() bool {
	return r.client.Available()
}

// Review returns a cached opinion when possible, otherwise calls the
// service through the circuit breaker and populates both cache tiers.
func (r *Resilient) Review(ctx context.Context, opinion *domain.ClassifierOpinion, record *domain.PatientRecord) (*domain.ReviewerOpinion, error) {
	key := opinionCacheKey(opinion, record)

	if cached, ok := r.memory.Get(key); ok {
		return cached.(*domain.ReviewerOpinion), nil
	}
	if r.remote != nil {
		if cached, found, err := r.remote.Get(ctx, key); err == nil && found {
			r.memory.Add(key, cached)
			return cached, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Review(ctx, opinion, record)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrReviewerUnavailable)
		}
		return nil, err
	}

	review := result.(*domain.ReviewerOpinion)
	r.memory.Add(key, review)
	if r.remote != nil {
		if cacheErr := r.remote.Set(ctx, key, review); cacheErr != nil {
			r.logger.WithError(cacheErr).Debug("Failed to cache reviewer opinion")
		}
	}
	return review, nil
}

// SuggestTreatment calls the service through the circuit breaker.
func (r *Resilient) SuggestTreatment(ctx context.Context, diagnosis *domain.FinalDiagnosis, record *domain.PatientRecord) (*domain.TreatmentPlan, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.SuggestTreatment(ctx, diagnosis, record)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrReviewerUnavailable)
		}
		return nil, err
	}
	return result.(*domain.TreatmentPlan), nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (r *Resilient) BreakerState() gobreaker.State {
	return r.breaker.State()
}

// Close releases cache resources.
func (r *Resilient) Close() error {
	if r.remote != nil {
		return r.remote.Close()
	}
	return nil
}
