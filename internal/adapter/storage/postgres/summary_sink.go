package postgres

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentalku/relayd/internal/domain"
)

// monthlySummaryModel is the persisted form of one summary row. The
// per-channel breakdown is stored as JSON; the table is rewritten
// wholesale on every aggregation run.
type monthlySummaryModel struct {
	MonthKey              string    `gorm:"primaryKey;column:month_key"`
	Channels              string    `gorm:"column:channels;type:text"`
	MonthlyTotalProfit    float64   `gorm:"column:monthly_total_profit"`
	FormattedMonthlyTotal string    `gorm:"column:formatted_monthly_total"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (monthlySummaryModel) TableName() string {
	return "monthly_summaries"
}

// SummarySinkRepository replaces the monthly summary table with each
// freshly computed snapshot. Delete and insert run in one transaction,
// so a failed run leaves the previous summary intact.
type SummarySinkRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSummarySinkRepository(db *gorm.DB, log *zap.Logger) *SummarySinkRepository {
	return &SummarySinkRepository{
		db:  db,
		log: log,
	}
}

func (r *SummarySinkRepository) Replace(ctx context.Context, rows []domain.MonthlySummaryRow) error {
	models := make([]monthlySummaryModel, 0, len(rows))
	now := time.Now()
	for _, row := range rows {
		channels, err := json.Marshal(row.Channels)
		if err != nil {
			return err
		}
		models = append(models, monthlySummaryModel{
			MonthKey:              row.MonthKey,
			Channels:              string(channels),
			MonthlyTotalProfit:    row.MonthlyTotalProfit,
			FormattedMonthlyTotal: row.FormattedMonthlyTotal,
			UpdatedAt:             now,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&monthlySummaryModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return err
	}

	r.log.Info("Monthly summary replaced", zap.Int("months", len(rows)))
	return nil
}

// ReadAll returns the persisted summary rows, oldest month first.
func (r *SummarySinkRepository) ReadAll(ctx context.Context) ([]domain.MonthlySummaryRow, error) {
	var models []monthlySummaryModel
	if err := r.db.WithContext(ctx).Order("month_key asc").Find(&models).Error; err != nil {
		return nil, err
	}

	rows := make([]domain.MonthlySummaryRow, 0, len(models))
	for _, m := range models {
		var channels []domain.ChannelSummary
		if err := json.Unmarshal([]byte(m.Channels), &channels); err != nil {
			return nil, err
		}
		rows = append(rows, domain.MonthlySummaryRow{
			MonthKey:              m.MonthKey,
			Channels:              channels,
			MonthlyTotalProfit:    m.MonthlyTotalProfit,
			FormattedMonthlyTotal: m.FormattedMonthlyTotal,
		})
	}
	return rows, nil
}
