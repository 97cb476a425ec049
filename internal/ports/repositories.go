package ports

import (
	"context"
	"time"

	"github.com/rentalku/relayd/internal/domain"
)

// UsageLedger is the append-only store of completed usage records. The
// timer engine writes through it; the aggregation engine scans it.
type UsageLedger interface {
	Append(ctx context.Context, record *domain.UsageRecord) error
	ReadAll(ctx context.Context) ([]domain.UsageRecord, error)
}

// SummarySink receives the freshly recomputed monthly summary. Replace
// is clear-then-write: the previous contents are discarded wholesale,
// never merged.
type SummarySink interface {
	Replace(ctx context.Context, rows []domain.MonthlySummaryRow) error
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
