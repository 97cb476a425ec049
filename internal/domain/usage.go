package domain

import (
	"time"
)

// UsageRecord is the immutable fact written once per completed (expired,
// not cancelled) session. Date and time range keep the ledger's historic
// string formats: "DD/MM/YYYY" and "HH:MM - HH:MM". TotalPrice is the
// already-formatted amount, e.g. "Rp 5.500".
type UsageRecord struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Date            string    `json:"date" gorm:"index"`
	ChannelID       int       `json:"channel_id" gorm:"index"`
	DurationMinutes int       `json:"duration_minutes"`
	UsageTimeRange  string    `json:"usage_time_range"`
	TotalPrice      string    `json:"total_price"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChannelSummary is one channel's slice of a monthly summary row.
type ChannelSummary struct {
	ChannelID            int     `json:"channel_id"`
	Count                int     `json:"count"`
	TotalDurationMinutes int     `json:"total_duration_minutes"`
	FormattedDuration    string  `json:"formatted_duration"` // H:MM
	TotalProfit          float64 `json:"total_profit"`
	FormattedProfit      string  `json:"formatted_profit"`
}

// MonthlySummaryRow is one fully recomputed month of the summary,
// keyed by "YYYY-MM". It is a pure function of the usage record set.
type MonthlySummaryRow struct {
	MonthKey              string           `json:"month_key"`
	Channels              []ChannelSummary `json:"channels"`
	MonthlyTotalProfit    float64          `json:"monthly_total_profit"`
	FormattedMonthlyTotal string           `json:"formatted_monthly_total"`
}
