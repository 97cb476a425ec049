package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/observability/telemetry"
	"github.com/rentalku/relayd/internal/ports"
)

// UsageLedgerRepository is the append-only ledger of completed sessions.
type UsageLedgerRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUsageLedgerRepository(db *gorm.DB, log *zap.Logger) ports.UsageLedger {
	return &UsageLedgerRepository{
		db:  db,
		log: log,
	}
}

func (r *UsageLedgerRepository) Append(ctx context.Context, record *domain.UsageRecord) error {
	started := time.Now()
	err := r.db.WithContext(ctx).Create(record).Error
	telemetry.LedgerLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		return err
	}

	r.log.Info("Usage record appended",
		zap.Uint("id", record.ID),
		zap.Int("channel", record.ChannelID),
		zap.Int("duration_minutes", record.DurationMinutes),
	)
	return nil
}

func (r *UsageLedgerRepository) ReadAll(ctx context.Context) ([]domain.UsageRecord, error) {
	started := time.Now()
	var records []domain.UsageRecord
	err := r.db.WithContext(ctx).Order("id asc").Find(&records).Error
	telemetry.LedgerLatency.Observe(time.Since(started).Seconds())
	return records, err
}
