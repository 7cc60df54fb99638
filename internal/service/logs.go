package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/errors"
)

var logFilterSchema = FilterSchema{
	"level":  EnumRule("level", "debug", "info", "warn", "error"),
	"source": EqRule("source"),
	"search": SearchRule("message"),
}

var logSortable = map[string]bool{
	"level":      true,
	"source":     true,
	"created_at": true,
}

// SystemLogs exposes the append-only operational log. Entries are written by
// the platform; the only mutation here is retention cleanup.
type SystemLogs struct {
	repo   *repository.SystemLogs
	logger *zap.Logger
}

// NewSystemLogs creates the service.
func NewSystemLogs(repo *repository.SystemLogs, logger *zap.Logger) *SystemLogs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemLogs{repo: repo, logger: logger}
}

// List returns one page of log entries.
func (s *SystemLogs) List(ctx context.Context, meta Meta, scope string, q ListQuery) (*repository.Page[domain.SystemLog], error) {
	filter := SanitizeFilter(q.Filters, logFilterSchema)
	sort := q.Sort(logSortable, "created_at")
	if q.SortBy == "" {
		sort.Descending = true
	}
	return s.repo.FindMany(ctx, scope, q.Pagination(), sort, filter)
}

// Get returns one log entry by id.
func (s *SystemLogs) Get(ctx context.Context, meta Meta, scope, id string) (*domain.SystemLog, error) {
	return s.repo.FindByID(ctx, scope, id)
}

// FilterOptions returns the distinct values for the filterable columns.
func (s *SystemLogs) FilterOptions(ctx context.Context, meta Meta, scope string) (map[string][]string, error) {
	return s.repo.FilterOptions(ctx, scope)
}

// Purge removes log entries older than the retention window.
func (s *SystemLogs) Purge(ctx context.Context, meta Meta, scope string, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, errors.NewValidation("retention must be positive")
	}
	cutoff := time.Now().Add(-retention)
	purged, err := s.repo.PurgeOlderThan(ctx, scope, cutoff)
	if err != nil {
		return purged, err
	}
	if purged > 0 {
		s.logger.Info("purged system logs",
			zap.String("company_id", scope),
			zap.Int("purged", purged))
	}
	return purged, nil
}
