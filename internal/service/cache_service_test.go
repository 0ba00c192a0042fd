package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gens    map[string]int64
	bumpErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, gens: map[string]int64{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Generation(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[key], nil
}

func (m *memoryCache) Bump(ctx context.Context, key string) error {
	if m.bumpErr != nil {
		return m.bumpErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[key]++
	return nil
}

func TestCacheServiceListingKeyFollowsGeneration(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)

	filter := models.RecordFilter{Status: "draft", Page: 1, PageSize: 20}
	key, err := svc.ListingKey(ctx, "t1", models.RecordLessonPlan, filter)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "records:t1:lesson_plan:v0:"))

	same, err := svc.ListingKey(ctx, "t1", models.RecordLessonPlan, filter)
	require.NoError(t, err)
	assert.Equal(t, key, same)

	other, err := svc.ListingKey(ctx, "t1", models.RecordLessonPlan, models.RecordFilter{Status: "submitted", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	require.NoError(t, svc.Set(ctx, key, map[string]int{"total": 3}, 0))
	var cached map[string]int
	hit, err := svc.Get(ctx, key, &cached)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, cached["total"])

	require.NoError(t, svc.Invalidate(ctx, "t1", models.RecordLessonPlan))
	bumped, err := svc.ListingKey(ctx, "t1", models.RecordLessonPlan, filter)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bumped, "records:t1:lesson_plan:v1:"))

	hit, err = svc.Get(ctx, bumped, &cached)
	require.NoError(t, err)
	assert.False(t, hit)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceDisabled(t *testing.T) {
	ctx := context.Background()
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	svc := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	hit, err := svc.Get(ctx, "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.NoError(t, svc.Invalidate(ctx, "t1", models.RecordNewsItem))
}

func TestCacheServiceInvalidateReportsFailure(t *testing.T) {
	repo := newMemoryCache()
	repo.bumpErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	assert.Error(t, svc.Invalidate(context.Background(), "t1", models.RecordNewsItem))
}

func TestLifecycleListUsesCache(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	s1 := e.tenant(t, "s1")
	teacher := e.actor(t, s1, models.RoleContributor)

	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCache(), metrics, 0, nil, true)
	WithLifecycleCache(cache)(e.lifecycle)

	_, err := e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Fractions", "2025-04-01"))
	require.NoError(t, err)

	page, err := e.lifecycle.List(ctx, teacher, models.RecordLessonPlan, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = e.lifecycle.List(ctx, teacher, models.RecordLessonPlan, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Fractions", page.Items[0].(*models.LessonPlan).Topic)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)

	_, err = e.lifecycle.Create(ctx, teacher, models.RecordLessonPlan, lessonFields("Decimals", "2025-04-02"))
	require.NoError(t, err)
	page, err = e.lifecycle.List(ctx, teacher, models.RecordLessonPlan, models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "writes invalidate cached listings")
}
