package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/adapter/queue"
	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/observability/telemetry"
	"github.com/rentalku/relayd/internal/ports"
	"github.com/rentalku/relayd/internal/service/billing"
)

// stopper is what the engine keeps of a scheduled deferred-off task.
type stopper interface {
	Stop() bool
}

// pendingSession is the in-flight usage context for one channel. Its
// presence is the authority over whether a session is still live:
// expiry and cancel both remove it under the mutex, and whichever loses
// that race finds nothing left to act on.
type pendingSession struct {
	session *domain.Session
	timer   stopper
}

// Engine manages at most one deferred-off timer per channel. Arm,
// cancel and expiry all serialize on one mutex; the expiry callback
// runs on its own goroutine and re-enters through the same lock.
type Engine struct {
	channels ports.ChannelService
	calc     *billing.Calculator
	ledger   ports.UsageLedger
	mq       queue.MessageQueue
	notifier ports.Notifier
	log      *zap.Logger

	now      func() time.Time
	schedule func(d time.Duration, fn func()) stopper

	mu      sync.Mutex
	pending map[int]*pendingSession
}

func NewEngine(channels ports.ChannelService, calc *billing.Calculator, ledger ports.UsageLedger, mq queue.MessageQueue, notifier ports.Notifier, log *zap.Logger) *Engine {
	return &Engine{
		channels: channels,
		calc:     calc,
		ledger:   ledger,
		mq:       mq,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
		pending: make(map[int]*pendingSession),
	}
}

// Arm starts a timed session on a channel. The engine only requires
// that no session is already live; whether the channel is on is the
// caller's gate.
func (e *Engine) Arm(ctx context.Context, channelID, minutes int) (*domain.Session, error) {
	if _, err := e.channels.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}
	if minutes <= 0 {
		return nil, domain.ErrInvalidDuration
	}

	start := e.now()
	session := &domain.Session{
		ID:              uuid.New().String(),
		ChannelID:       channelID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          domain.SessionStatusRunning,
	}

	e.mu.Lock()
	if p, ok := e.pending[channelID]; ok && p.session.EndTime.After(start) {
		e.mu.Unlock()
		return nil, domain.ErrAlreadyTimed
	}
	p := &pendingSession{session: session}
	e.pending[channelID] = p
	p.timer = e.schedule(session.EndTime.Sub(start), func() {
		e.expire(channelID, session.ID)
	})
	e.mu.Unlock()

	telemetry.ActiveSessions.Inc()
	e.log.Info("Timer armed",
		zap.Int("channel", channelID),
		zap.Int("minutes", minutes),
		zap.String("session_id", session.ID),
	)

	return session, nil
}

// Cancel stops a pending timer without billing and reports whether
// there was anything to stop. Invoked by the registry on manual off.
func (e *Engine) Cancel(ctx context.Context, channelID int) (bool, error) {
	if _, err := e.channels.GetChannel(ctx, channelID); err != nil {
		return false, err
	}

	e.mu.Lock()
	p, ok := e.pending[channelID]
	if !ok {
		e.mu.Unlock()
		return false, nil
	}
	delete(e.pending, channelID)
	e.mu.Unlock()

	p.timer.Stop()
	p.session.Status = domain.SessionStatusCancelled
	telemetry.ActiveSessions.Dec()

	e.log.Info("Timer cancelled, no usage record produced",
		zap.Int("channel", channelID),
		zap.String("session_id", p.session.ID),
	)
	return true, nil
}

// Remaining derives the countdown from the session's end time. It never
// mutates state.
func (e *Engine) Remaining(ctx context.Context, channelID int) (*ports.RemainingTime, error) {
	if _, err := e.channels.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	p, ok := e.pending[channelID]
	e.mu.Unlock()

	if !ok {
		return nil, domain.ErrNoActiveTimer
	}

	left := p.session.EndTime.Sub(e.now())
	if left <= 0 {
		return nil, domain.ErrNoActiveTimer
	}

	return &ports.RemainingTime{
		Minutes: int(left / time.Minute),
		Seconds: int((left % time.Minute) / time.Second),
	}, nil
}

// HasActiveTimer reports whether a session is currently live on the
// channel. Used by the registry to build affordance snapshots.
func (e *Engine) HasActiveTimer(channelID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[channelID]
	return ok && p.session.EndTime.After(e.now())
}

// expire is the deferred-off completion path. It fires at or after the
// session's end time and must be idempotent against a duplicate firing
// or a concurrent cancel: if the pending context is already gone, it is
// a no-op.
func (e *Engine) expire(channelID int, sessionID string) {
	e.mu.Lock()
	p, ok := e.pending[channelID]
	if !ok || p.session.ID != sessionID {
		e.mu.Unlock()
		return
	}
	delete(e.pending, channelID)
	e.mu.Unlock()

	ctx := context.Background()
	end := e.now()
	session := p.session
	session.Status = domain.SessionStatusExpired
	telemetry.ActiveSessions.Dec()

	e.log.Info("Timer expired, switching channel off",
		zap.Int("channel", channelID),
		zap.String("session_id", session.ID),
	)

	// The pending context is already cleared, so the registry's implicit
	// cancel finds nothing and the off transition does not re-enter.
	if err := e.channels.SetState(ctx, channelID, domain.PowerStateOff); err != nil {
		e.log.Error("Failed to switch channel off on expiry", zap.Int("channel", channelID), zap.Error(err))
	}

	record, err := e.buildRecord(ctx, session, end)
	if err != nil {
		e.log.Error("Failed to build usage record", zap.Int("channel", channelID), zap.Error(err))
		return
	}

	if err := e.ledger.Append(ctx, record); err != nil {
		// The record is lost for this session; the channel stays off.
		e.log.Error("Usage record lost",
			zap.Int("channel", channelID),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)),
		)
	} else {
		telemetry.UsageRecordsTotal.Inc()
	}

	e.publishExpired(channelID, record)
	if e.notifier != nil {
		e.notifier.OnTimerExpired(channelID, record)
	}
}

func (e *Engine) buildRecord(ctx context.Context, session *domain.Session, end time.Time) (*domain.UsageRecord, error) {
	ch, err := e.channels.GetChannel(ctx, session.ChannelID)
	if err != nil {
		return nil, err
	}

	price := e.calc.Price(session.DurationMinutes, ch.PricePerUnit)
	telemetry.BilledAmountTotal.Add(float64(price))

	return &domain.UsageRecord{
		Date:            session.StartTime.Format("02/01/2006"),
		ChannelID:       session.ChannelID,
		DurationMinutes: session.DurationMinutes,
		UsageTimeRange:  fmt.Sprintf("%s - %s", session.StartTime.Format("15:04"), end.Format("15:04")),
		TotalPrice:      e.calc.FormatAmount(price),
		CreatedAt:       end,
	}, nil
}

func (e *Engine) publishExpired(channelID int, record *domain.UsageRecord) {
	if e.mq == nil {
		return
	}

	event := map[string]interface{}{
		"event_type": "session.expired",
		"channel_id": channelID,
		"record":     record,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if data, err := json.Marshal(event); err == nil {
		if err := e.mq.Publish("session.expired", data); err != nil {
			e.log.Warn("Failed to publish expiry event", zap.Error(err))
		}
	}
}
