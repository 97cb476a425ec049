package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/adapter/queue"
	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/observability/telemetry"
	"github.com/rentalku/relayd/internal/ports"
	"github.com/rentalku/relayd/internal/service/billing"
)

// Aggregator rebuilds the monthly summary from the full usage ledger.
// Every run is a complete recompute followed by a clear-then-write of
// the destination: re-running against an unchanged ledger yields
// byte-identical output, and a prior partial write heals itself.
type Aggregator struct {
	ledger       ports.UsageLedger
	sink         ports.SummarySink
	calc         *billing.Calculator
	mq           queue.MessageQueue
	channelCount int
	log          *zap.Logger
}

func NewAggregator(ledger ports.UsageLedger, sink ports.SummarySink, calc *billing.Calculator, mq queue.MessageQueue, channelCount int, log *zap.Logger) *Aggregator {
	return &Aggregator{
		ledger:       ledger,
		sink:         sink,
		calc:         calc,
		mq:           mq,
		channelCount: channelCount,
		log:          log,
	}
}

type channelAccum struct {
	count         int
	totalDuration int
	totalProfit   float64
}

type monthAccum struct {
	channels    map[int]*channelAccum
	totalProfit float64
}

// Run scans the whole ledger, groups records by calendar month and
// channel, and replaces the summary destination. A failed read aborts
// the run before the destination is touched; malformed individual rows
// are skipped with a warning.
func (a *Aggregator) Run(ctx context.Context) (*ports.AggregationResult, error) {
	a.log.Info("Starting monthly aggregation run")
	started := time.Now()

	records, err := a.ledger.ReadAll(ctx)
	if err != nil {
		telemetry.AggregationRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerRead, err)
	}

	months := make(map[string]*monthAccum)
	skipped := 0

	for _, rec := range records {
		key, ok := monthKey(rec.Date)
		if !ok {
			a.log.Warn("Skipping record with missing or malformed date",
				zap.Uint("record", rec.ID),
				zap.String("date", rec.Date),
			)
			skipped++
			continue
		}
		if rec.ChannelID < 1 || rec.ChannelID > a.channelCount {
			a.log.Warn("Skipping record with unknown channel",
				zap.Uint("record", rec.ID),
				zap.Int("channel", rec.ChannelID),
			)
			skipped++
			continue
		}

		profit, err := parseAmount(rec.TotalPrice)
		if err != nil {
			a.log.Warn("Skipping record with unparseable price",
				zap.Uint("record", rec.ID),
				zap.String("price", rec.TotalPrice),
			)
			skipped++
			continue
		}

		m, ok := months[key]
		if !ok {
			m = &monthAccum{channels: make(map[int]*channelAccum)}
			months[key] = m
		}
		c, ok := m.channels[rec.ChannelID]
		if !ok {
			c = &channelAccum{}
			m.channels[rec.ChannelID] = c
		}

		c.count++
		c.totalDuration += rec.DurationMinutes
		c.totalProfit += profit
		m.totalProfit += profit
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]domain.MonthlySummaryRow, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, a.buildRow(key, months[key]))
	}

	if err := a.sink.Replace(ctx, rows); err != nil {
		telemetry.AggregationRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrAggregation, err)
	}

	telemetry.AggregationRunsTotal.WithLabelValues("success").Inc()
	telemetry.AggregationDuration.Observe(time.Since(started).Seconds())

	result := &ports.AggregationResult{
		Months:         len(rows),
		RecordsRead:    len(records),
		RecordsSkipped: skipped,
	}

	a.log.Info("Monthly aggregation run finished",
		zap.Int("months", result.Months),
		zap.Int("records", result.RecordsRead),
		zap.Int("skipped", result.RecordsSkipped),
	)

	a.publishCompleted(result)
	return result, nil
}

// buildRow formats one month. Every channel 1..N gets an entry even
// with no usage, so rows always have the same shape.
func (a *Aggregator) buildRow(key string, m *monthAccum) domain.MonthlySummaryRow {
	row := domain.MonthlySummaryRow{
		MonthKey:              key,
		Channels:              make([]domain.ChannelSummary, 0, a.channelCount),
		MonthlyTotalProfit:    m.totalProfit,
		FormattedMonthlyTotal: a.calc.FormatAmount(int64(m.totalProfit)),
	}

	for id := 1; id <= a.channelCount; id++ {
		summary := domain.ChannelSummary{
			ChannelID:         id,
			FormattedDuration: "0:00",
			FormattedProfit:   a.calc.FormatAmount(0),
		}
		if c, ok := m.channels[id]; ok {
			summary.Count = c.count
			summary.TotalDurationMinutes = c.totalDuration
			summary.FormattedDuration = FormatDuration(c.totalDuration)
			summary.TotalProfit = c.totalProfit
			summary.FormattedProfit = a.calc.FormatAmount(int64(c.totalProfit))
		}
		row.Channels = append(row.Channels, summary)
	}

	return row
}

func (a *Aggregator) publishCompleted(result *ports.AggregationResult) {
	if a.mq == nil {
		return
	}

	event := map[string]interface{}{
		"event_type": "report.completed",
		"months":     result.Months,
		"records":    result.RecordsRead,
		"skipped":    result.RecordsSkipped,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if data, err := json.Marshal(event); err == nil {
		if err := a.mq.Publish("report.completed", data); err != nil {
			a.log.Warn("Failed to publish report event", zap.Error(err))
		}
	}
}

// monthKey turns a "DD/MM/YYYY" ledger date into a sortable "YYYY-MM"
// group key.
func monthKey(date string) (string, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", false
	}

	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return "", false
	}

	month, year := parts[1], parts[2]
	if len(year) != 4 {
		return "", false
	}
	if _, err := strconv.Atoi(year); err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return "", false
	}

	return fmt.Sprintf("%s-%02d", year, mo), true
}

// FormatDuration renders minutes as floor-hours:zero-padded-minutes,
// e.g. 125 -> "2:05".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// parseAmount recovers a numeric amount from a formatted price string.
// Everything except digits, comma and minus is stripped (so "Rp 5.500"
// becomes 5500), then a decimal comma is normalized.
func parseAmount(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric content in %q", s)
	}
	return strconv.ParseFloat(cleaned, 64)
}
