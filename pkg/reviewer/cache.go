package reviewer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medipatient-api-server/internal/domain"
)

// OpinionCache is the optional distributed tier of the reviewer cache,
// backed by Redis.
type OpinionCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewOpinionCache connects to Redis and verifies the connection.
func NewOpinionCache(config domain.CacheConfig) (*OpinionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &OpinionCache{redis: client, defaultTTL: ttl}, nil
}

// cachedOpinion wraps a stored opinion with expiry metadata.
type cachedOpinion struct {
	Data      *domain.ReviewerOpinion `json:"data"`
	CachedAt  time.Time               `json:"cached_at"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Get retrieves a cached opinion. Corrupted or expired entries are
// dropped and reported as misses.
func (c *OpinionCache) Get(ctx context.Context, key string) (*domain.ReviewerOpinion, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached opinion: %w", err)
	}

	var cached cachedOpinion
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Data, true, nil
}

// Set stores an opinion under the context key.
func (c *OpinionCache) Set(ctx context.Context, key string, opinion *domain.ReviewerOpinion) error {
	cached := cachedOpinion{
		Data:      opinion,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached opinion: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Ping checks if the Redis connection is alive.
func (c *OpinionCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *OpinionCache) Close() error {
	return c.redis.Close()
}

// opinionCacheKey hashes the full clinical context plus the classifier
// label, so identical inputs hit the same entry and nothing else does.
// Keying on the complete input keeps cached replies consistent with the
// pipeline's determinism guarantees.
func opinionCacheKey(opinion *domain.ClassifierOpinion, record *domain.PatientRecord) string {
	data := fmt.Sprintf("%s:%.4f:%.1f:%s:%.1f:%.0f:%.0f:%.0f:%.0f:%.0f:%.0f:%s:%s",
		opinion.Label, opinion.Confidence,
		record.Age, record.Gender,
		record.Temperature, record.HeartRate, record.SystolicBP, record.DiastolicBP,
		record.RespiratoryRate, record.OxygenSaturation, record.PainScore,
		strings.Join(record.Symptoms, ","), strings.Join(record.MedicalHistory, ","))

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("reviewer:opinion:%x", hash[:12])
}
