package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/pkg/cache"
)

var (
	latestReportKey = cache.GenerateKey("report", "latest")
	runLockKey      = cache.GenerateKey("lock", "pipeline-run")
)

// CacheReportStore keeps the latest outcome and the run lock in a cache.Service.
// With the redis or layered backend the lock is shared across replicas.
type CacheReportStore struct {
	cache     cache.Service
	latestTTL time.Duration
}

func NewCacheReportStore(c cache.Service, latestTTL time.Duration) *CacheReportStore {
	return &CacheReportStore{cache: c, latestTTL: latestTTL}
}

func (s *CacheReportStore) SaveLatest(ctx context.Context, o *models.PipelineOutcome) error {
	if err := s.cache.Set(ctx, latestReportKey, o, s.latestTTL); err != nil {
		return fmt.Errorf("save latest report: %w", err)
	}
	return nil
}

func (s *CacheReportStore) Latest(ctx context.Context) (*models.PipelineOutcome, error) {
	var o models.PipelineOutcome
	if err := s.cache.Get(ctx, latestReportKey, &o); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrNoReport
		}
		return nil, fmt.Errorf("load latest report: %w", err)
	}
	return &o, nil
}

func (s *CacheReportStore) AcquireRunLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return s.cache.TryLock(ctx, runLockKey, ttl)
}

func (s *CacheReportStore) ReleaseRunLock(ctx context.Context) error {
	return s.cache.Unlock(ctx, runLockKey)
}
