package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
)

const defaultRequestTTL = 5 * time.Minute

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService keeps copies of requests for the public status lookup. Every
// failure degrades to a miss; the store stays the source of truth.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCacheService constructs a cache service. A nil repo disables caching.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = defaultRequestTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// RequestCacheKey is the cache key of one request.
func RequestCacheKey(caseNumber string) string {
	return "request:" + caseNumber
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Request returns the cached copy of caseNumber, if any.
func (s *CacheService) Request(ctx context.Context, caseNumber string) (*models.Request, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := RequestCacheKey(caseNumber)
	var cached models.Request
	start := time.Now()
	err := s.repo.Get(ctx, key, &cached)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &cached, true
}

// StoreRequest caches req under its case number. A copy older than the
// fence left by ForgetRequest is removed again right after the write, so a
// lookup that read the row before a status update cannot repopulate the
// cache with the old status.
func (s *CacheService) StoreRequest(ctx context.Context, req *models.Request) {
	if !s.Enabled() || req == nil || req.CaseNumber == "" {
		return
	}
	key := RequestCacheKey(req.CaseNumber)
	start := time.Now()
	err := s.repo.Set(ctx, key, req, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.fencedOut(ctx, req) {
		if err := s.repo.Delete(ctx, key); err != nil {
			s.logger.Warn("cache delete of superseded request failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// ForgetRequest drops the cached copy of req and fences out copies older
// than req for one TTL.
func (s *CacheService) ForgetRequest(ctx context.Context, req *models.Request) error {
	if !s.Enabled() || req == nil {
		return nil
	}
	if err := s.repo.Set(ctx, requestFenceKey(req.CaseNumber), req.UpdatedAt.UnixNano(), s.ttl); err != nil {
		return err
	}
	return s.repo.Delete(ctx, RequestCacheKey(req.CaseNumber))
}

// fencedOut reports whether req predates the last ForgetRequest. An
// unreadable fence counts as fenced.
func (s *CacheService) fencedOut(ctx context.Context, req *models.Request) bool {
	var fence int64
	if err := s.repo.Get(ctx, requestFenceKey(req.CaseNumber), &fence); err != nil {
		return !errors.Is(err, appErrors.ErrCacheMiss)
	}
	return req.UpdatedAt.UnixNano() < fence
}

func requestFenceKey(caseNumber string) string {
	return RequestCacheKey(caseNumber) + ":fence"
}
