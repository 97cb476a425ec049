package channel

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/adapter/queue"
	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/ports"
)

const statusCacheKey = "relayd:channels:status"

// Service owns the channel registry: the fixed set of N channels with
// their price configuration and current power state. All mutations go
// through the single mutex; ad-hoc shared state lives nowhere else.
type Service struct {
	mu       sync.RWMutex
	channels map[int]*domain.Channel

	timers   ports.TimerCanceller
	hasTimer func(channelID int) bool

	cache    ports.Cache
	mq       queue.MessageQueue
	notifier ports.Notifier
	log      *zap.Logger
}

func NewService(count int, prices map[int]int64, cache ports.Cache, mq queue.MessageQueue, notifier ports.Notifier, log *zap.Logger) *Service {
	channels := make(map[int]*domain.Channel, count)
	for id := 1; id <= count; id++ {
		price, ok := prices[id]
		if !ok {
			log.Warn("No price configured for channel, defaulting to 0", zap.Int("channel", id))
		}
		channels[id] = &domain.Channel{
			ID:           id,
			State:        domain.PowerStateOff,
			PricePerUnit: price,
		}
	}

	return &Service{
		channels: channels,
		cache:    cache,
		mq:       mq,
		notifier: notifier,
		log:      log,
	}
}

// AttachTimers wires the timer engine in after construction. The engine
// needs the registry to flip channels off on expiry, and the registry
// needs the engine to discard sessions on manual off, so one side is
// attached late.
func (s *Service) AttachTimers(timers ports.TimerCanceller, hasTimer func(channelID int) bool) {
	s.timers = timers
	s.hasTimer = hasTimer
}

func (s *Service) SetState(ctx context.Context, channelID int, state domain.PowerState) error {
	if state != domain.PowerStateOn && state != domain.PowerStateOff {
		return domain.ErrInvalidChannel
	}

	s.mu.Lock()
	ch, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrInvalidChannel
	}
	ch.State = state
	s.mu.Unlock()

	// Manual off while a session is running cancels the session. No
	// usage record is produced: stop-early means no bill.
	if state == domain.PowerStateOff && s.timers != nil {
		cancelled, err := s.timers.Cancel(ctx, channelID)
		if err != nil {
			s.log.Error("Failed to cancel timer on manual off", zap.Int("channel", channelID), zap.Error(err))
		} else if cancelled {
			s.log.Info("Timer cancelled by manual off", zap.Int("channel", channelID))
		}
	}

	s.publishStateChanged(channelID, state)
	s.refreshSnapshot(ctx)
	s.notifyChanged(ctx)

	return nil
}

func (s *Service) GetChannel(ctx context.Context, channelID int) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil, domain.ErrInvalidChannel
	}
	copied := *ch
	return &copied, nil
}

func (s *Service) ListStates(ctx context.Context) ([]domain.ChannelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]domain.ChannelState, 0, len(s.channels))
	for _, ch := range s.channels {
		state := domain.ChannelState{
			ID:           ch.ID,
			State:        ch.State,
			PricePerUnit: ch.PricePerUnit,
		}
		if s.hasTimer != nil {
			state.TimerActive = s.hasTimer(ch.ID)
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states, nil
}

// Snapshot returns the flat {"1":"off",...} map the device poll endpoint
// has always served.
func (s *Service) Snapshot(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.channels))
	for id, ch := range s.channels {
		snapshot[strconv.Itoa(id)] = string(ch.State)
	}
	return snapshot, nil
}

func (s *Service) publishStateChanged(channelID int, state domain.PowerState) {
	if s.mq == nil {
		return
	}

	event := map[string]interface{}{
		"event_type": "channel.state_changed",
		"channel_id": channelID,
		"state":      state,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if data, err := json.Marshal(event); err == nil {
		if err := s.mq.Publish("channel.state_changed", data); err != nil {
			s.log.Warn("Failed to publish state change event", zap.Error(err))
		}
	}
}

// refreshSnapshot keeps the cached poll response current. Cache trouble
// is logged, never fatal: the handler falls back to the registry.
func (s *Service) refreshSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}

	snapshot, _ := s.Snapshot(ctx)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey, string(data), 0); err != nil {
		s.log.Warn("Failed to refresh status snapshot cache", zap.Error(err))
	}
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	states, err := s.ListStates(ctx)
	if err != nil {
		return
	}
	s.notifier.OnChannelsChanged(states)
}

// StatusCacheKey exposes the cache key used for the poll snapshot so
// the HTTP layer can read it directly.
func StatusCacheKey() string {
	return statusCacheKey
}
