package mocks

import (
	"context"

	"github.com/rentalku/relayd/internal/domain"
)

// MockUsageLedger is a mock implementation of UsageLedger
type MockUsageLedger struct {
	AppendFunc  func(ctx context.Context, record *domain.UsageRecord) error
	ReadAllFunc func(ctx context.Context) ([]domain.UsageRecord, error)

	Appended []domain.UsageRecord
}

func (m *MockUsageLedger) Append(ctx context.Context, record *domain.UsageRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, record)
	}
	m.Appended = append(m.Appended, *record)
	return nil
}

func (m *MockUsageLedger) ReadAll(ctx context.Context) ([]domain.UsageRecord, error) {
	if m.ReadAllFunc != nil {
		return m.ReadAllFunc(ctx)
	}
	return m.Appended, nil
}

// MockSummarySink is a mock implementation of SummarySink
type MockSummarySink struct {
	ReplaceFunc func(ctx context.Context, rows []domain.MonthlySummaryRow) error

	Replaced     [][]domain.MonthlySummaryRow
	ReplaceCalls int
}

func (m *MockSummarySink) Replace(ctx context.Context, rows []domain.MonthlySummaryRow) error {
	m.ReplaceCalls++
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, rows)
	}
	m.Replaced = append(m.Replaced, rows)
	return nil
}

// LastReplaced returns the rows from the most recent Replace call.
func (m *MockSummarySink) LastReplaced() []domain.MonthlySummaryRow {
	if len(m.Replaced) == 0 {
		return nil
	}
	return m.Replaced[len(m.Replaced)-1]
}
