package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) error
}

// CacheService orchestrates cache operations and related metrics. Listings
// are keyed on a per tenant and record type generation, so invalidation is a
// single counter increment.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// ListingKey builds the key of one listing page. The filter must already be
// narrowed to what the caller may see.
func (s *CacheService) ListingKey(ctx context.Context, tenantID string, t models.RecordType, filter interface{}) (string, error) {
	gen, err := s.repo.Generation(ctx, generationKey(tenantID, t))
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("marshal cache filter: %w", err)
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("records:%s:%s:v%d:%s", tenantID, t, gen, hex.EncodeToString(sum[:8])), nil
}

// Invalidate orphans every cached listing of t in the tenant.
func (s *CacheService) Invalidate(ctx context.Context, tenantID string, t models.RecordType) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Bump(ctx, generationKey(tenantID, t)); err != nil {
		s.logger.Warn("cache invalidate failed",
			zap.String("tenant_id", tenantID), zap.String("type", string(t)), zap.Error(err))
		return err
	}
	return nil
}

func generationKey(tenantID string, t models.RecordType) string {
	return fmt.Sprintf("records:%s:%s:gen", tenantID, t)
}
