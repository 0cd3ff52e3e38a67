package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
)

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches attendance summaries in Redis. Cache failures are
// logged and treated as misses so the service keeps working without Redis.
type CacheService struct {
	cache   summaryCache
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
}

// NewCacheService constructs CacheService. A nil cache disables caching.
func NewCacheService(cache summaryCache, ttl time.Duration, enabled bool, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		enabled = false
	}
	return &CacheService{cache: cache, ttl: ttl, enabled: enabled, logger: logger}
}

// GetSummary returns the cached summary for the filter, or false on a miss.
func (s *CacheService) GetSummary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, bool) {
	if !s.enabled {
		return nil, false
	}
	var summary models.AttendanceSummary
	if err := s.cache.Get(ctx, summaryKey(filter), &summary); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("attendance summary cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return &summary, true
}

// SetSummary stores the summary for the filter.
func (s *CacheService) SetSummary(ctx context.Context, filter models.AttendanceFilter, summary *models.AttendanceSummary) {
	if !s.enabled || summary == nil {
		return
	}
	if err := s.cache.Set(ctx, summaryKey(filter), summary, s.ttl); err != nil {
		s.logger.Warn("attendance summary cache write failed", zap.Error(err))
	}
}

// InvalidateBatch drops every cached summary for the batch. Called after any
// attendance write.
func (s *CacheService) InvalidateBatch(ctx context.Context, batchID string) {
	if !s.enabled {
		return
	}
	pattern := fmt.Sprintf("attendance:summary:%s:*", batchID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("attendance summary cache invalidation failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func summaryKey(filter models.AttendanceFilter) string {
	from, to := "-", "-"
	if filter.DateFrom != nil {
		from = filter.DateFrom.Format("2006-01-02")
	}
	if filter.DateTo != nil {
		to = filter.DateTo.Format("2006-01-02")
	}
	student := filter.StudentID
	if student == "" {
		student = "-"
	}
	return fmt.Sprintf("attendance:summary:%s:%s:%s:%s", filter.BatchID, student, from, to)
}
