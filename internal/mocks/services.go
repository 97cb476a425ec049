package mocks

import (
	"context"
	"sync"

	"github.com/rentalku/relayd/internal/domain"
)

// MockChannelService is a mock implementation of ChannelService
type MockChannelService struct {
	SetStateFunc   func(ctx context.Context, channelID int, state domain.PowerState) error
	GetChannelFunc func(ctx context.Context, channelID int) (*domain.Channel, error)
	ListStatesFunc func(ctx context.Context) ([]domain.ChannelState, error)
	SnapshotFunc   func(ctx context.Context) (map[string]string, error)

	StateChanges []domain.PowerState
}

func (m *MockChannelService) SetState(ctx context.Context, channelID int, state domain.PowerState) error {
	m.StateChanges = append(m.StateChanges, state)
	if m.SetStateFunc != nil {
		return m.SetStateFunc(ctx, channelID, state)
	}
	return nil
}

func (m *MockChannelService) GetChannel(ctx context.Context, channelID int) (*domain.Channel, error) {
	if m.GetChannelFunc != nil {
		return m.GetChannelFunc(ctx, channelID)
	}
	return nil, domain.ErrInvalidChannel
}

func (m *MockChannelService) ListStates(ctx context.Context) ([]domain.ChannelState, error) {
	if m.ListStatesFunc != nil {
		return m.ListStatesFunc(ctx)
	}
	return []domain.ChannelState{}, nil
}

func (m *MockChannelService) Snapshot(ctx context.Context) (map[string]string, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	return map[string]string{}, nil
}

// MockTimerCanceller is a mock implementation of TimerCanceller
type MockTimerCanceller struct {
	CancelFunc func(ctx context.Context, channelID int) (bool, error)

	CancelCalls []int
}

func (m *MockTimerCanceller) Cancel(ctx context.Context, channelID int) (bool, error) {
	m.CancelCalls = append(m.CancelCalls, channelID)
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, channelID)
	}
	return false, nil
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mu sync.Mutex

	ChangedCalls [][]domain.ChannelState
	ExpiredCalls []ExpiredCall
}

type ExpiredCall struct {
	ChannelID int
	Record    *domain.UsageRecord
}

func (m *MockNotifier) OnChannelsChanged(states []domain.ChannelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChangedCalls = append(m.ChangedCalls, states)
}

func (m *MockNotifier) OnTimerExpired(channelID int, record *domain.UsageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpiredCalls = append(m.ExpiredCalls, ExpiredCall{ChannelID: channelID, Record: record})
}

// Expired returns a copy of the expiry callbacks seen so far.
func (m *MockNotifier) Expired() []ExpiredCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ExpiredCall, len(m.ExpiredCalls))
	copy(calls, m.ExpiredCalls)
	return calls
}
