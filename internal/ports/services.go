package ports

import (
	"context"

	"github.com/rentalku/relayd/internal/domain"
)

type ChannelService interface {
	SetState(ctx context.Context, channelID int, state domain.PowerState) error
	GetChannel(ctx context.Context, channelID int) (*domain.Channel, error)
	ListStates(ctx context.Context) ([]domain.ChannelState, error)
	// Snapshot returns the legacy poll shape: {"1":"off", "2":"on", ...}.
	Snapshot(ctx context.Context) (map[string]string, error)
}

// RemainingTime is the countdown until a running session's end time.
type RemainingTime struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type TimerService interface {
	Arm(ctx context.Context, channelID, minutes int) (*domain.Session, error)
	// Cancel reports whether a pending timer was actually stopped, so
	// callers can distinguish a real cancellation from a no-op that lost
	// the race against expiry.
	Cancel(ctx context.Context, channelID int) (bool, error)
	Remaining(ctx context.Context, channelID int) (*RemainingTime, error)
}

// TimerCanceller is the slice of TimerService the channel registry needs
// when a manual off must discard a running session.
type TimerCanceller interface {
	Cancel(ctx context.Context, channelID int) (bool, error)
}

// AggregationResult reports one aggregation run.
type AggregationResult struct {
	Months         int `json:"months"`
	RecordsRead    int `json:"records_read"`
	RecordsSkipped int `json:"records_skipped"`
}

type AggregationService interface {
	Run(ctx context.Context) (*AggregationResult, error)
}

// Notifier is called back by the core when channel affordances change
// and when a timer expires; the presentation layer renders the events.
type Notifier interface {
	OnChannelsChanged(states []domain.ChannelState)
	OnTimerExpired(channelID int, record *domain.UsageRecord)
}
