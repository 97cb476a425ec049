package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/mocks"
	"github.com/rentalku/relayd/internal/service/billing"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// fakeTimer records whether Stop was called; the test fires the
// captured callback by hand instead of waiting on a real clock.
type fakeTimer struct {
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	f.stopped = true
	return true
}

type testHarness struct {
	engine   *Engine
	channels *mocks.MockChannelService
	ledger   *mocks.MockUsageLedger
	queue    *mocks.MockMessageQueue
	notifier *mocks.MockNotifier

	mu        sync.Mutex
	callbacks []func()
	clock     time.Time
}

func newHarness(t *testing.T, start time.Time) *testHarness {
	t.Helper()

	h := &testHarness{
		channels: &mocks.MockChannelService{
			GetChannelFunc: func(ctx context.Context, id int) (*domain.Channel, error) {
				if id < 1 || id > 8 {
					return nil, domain.ErrInvalidChannel
				}
				price := int64(10000)
				if id == 4 {
					price = 8000
				}
				return &domain.Channel{ID: id, State: domain.PowerStateOn, PricePerUnit: price}, nil
			},
		},
		ledger:   &mocks.MockUsageLedger{},
		queue:    mocks.NewMockMessageQueue(),
		notifier: &mocks.MockNotifier{},
		clock:    start,
	}

	h.engine = NewEngine(h.channels, billing.NewCalculator(nil), h.ledger, h.queue, h.notifier, newTestLogger())
	h.engine.now = func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.clock
	}
	h.engine.schedule = func(d time.Duration, fn func()) stopper {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.callbacks = append(h.callbacks, fn)
		return &fakeTimer{}
	}

	return h
}

func (h *testHarness) advance(d time.Duration) {
	h.mu.Lock()
	h.clock = h.clock.Add(d)
	h.mu.Unlock()
}

func (h *testHarness) fire(i int) {
	h.mu.Lock()
	fn := h.callbacks[i]
	h.mu.Unlock()
	fn()
}

var testStart = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

func TestArm_Success(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h := newHarness(t, testStart)

	// Act
	session, err := h.engine.Arm(ctx, 3, 20)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.ChannelID != 3 {
		t.Errorf("expected channel 3, got %d", session.ChannelID)
	}
	if session.DurationMinutes != 20 {
		t.Errorf("expected 20 minutes, got %d", session.DurationMinutes)
	}
	want := testStart.Add(20 * time.Minute)
	if !session.EndTime.Equal(want) {
		t.Errorf("expected end time %v, got %v", want, session.EndTime)
	}
	if !h.engine.HasActiveTimer(3) {
		t.Error("expected an active timer on channel 3")
	}
}

func TestArm_AlreadyTimed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 3, 20); err != nil {
		t.Fatalf("first arm failed: %v", err)
	}

	// A second arm is rejected, not replaced, until the first session ends.
	if _, err := h.engine.Arm(ctx, 3, 10); err != domain.ErrAlreadyTimed {
		t.Fatalf("expected ErrAlreadyTimed, got %v", err)
	}

	// Cancelling frees the channel for a fresh arm.
	if _, err := h.engine.Cancel(ctx, 3); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := h.engine.Arm(ctx, 3, 10); err != nil {
		t.Fatalf("expected re-arm after cancel, got %v", err)
	}
}

func TestArm_InvalidDuration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	for _, minutes := range []int{0, -5} {
		if _, err := h.engine.Arm(ctx, 3, minutes); err != domain.ErrInvalidDuration {
			t.Errorf("Arm(3, %d): expected ErrInvalidDuration, got %v", minutes, err)
		}
	}
}

func TestArm_InvalidChannel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 99, 20); err != domain.ErrInvalidChannel {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestCancel_ProducesNoUsageRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 2, 30); err != nil {
		t.Fatalf("arm failed: %v", err)
	}

	cancelled, err := h.engine.Cancel(ctx, 2)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !cancelled {
		t.Fatal("expected Cancel to report true")
	}

	if len(h.ledger.Appended) != 0 {
		t.Errorf("expected no usage records after cancel, got %d", len(h.ledger.Appended))
	}
	if h.engine.HasActiveTimer(2) {
		t.Error("expected no active timer after cancel")
	}
}

func TestCancel_NoActiveTimer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	cancelled, err := h.engine.Cancel(ctx, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cancelled {
		t.Error("expected Cancel to report false when nothing is pending")
	}
}

func TestExpiry_ProducesExactlyOneRecord(t *testing.T) {
	// End-to-end expiry: channel 4 priced 8000 per 30 min, armed for
	// 20 minutes at 09:00 on 05/01/2025.
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 4, 20); err != nil {
		t.Fatalf("arm failed: %v", err)
	}

	h.advance(20 * time.Minute)
	h.fire(0)

	if len(h.ledger.Appended) != 1 {
		t.Fatalf("expected exactly one usage record, got %d", len(h.ledger.Appended))
	}
	rec := h.ledger.Appended[0]

	if rec.Date != "05/01/2025" {
		t.Errorf("expected date 05/01/2025, got %q", rec.Date)
	}
	if rec.ChannelID != 4 {
		t.Errorf("expected channel 4, got %d", rec.ChannelID)
	}
	if rec.DurationMinutes != 20 {
		t.Errorf("expected duration 20, got %d", rec.DurationMinutes)
	}
	if rec.UsageTimeRange != "09:00 - 09:20" {
		t.Errorf("expected range \"09:00 - 09:20\", got %q", rec.UsageTimeRange)
	}
	// 20/30 * 8000 = 5333.33 -> nearest 500 is 5500
	if rec.TotalPrice != "Rp 5.500" {
		t.Errorf("expected price \"Rp 5.500\", got %q", rec.TotalPrice)
	}

	// Channel was switched off
	if len(h.channels.StateChanges) != 1 || h.channels.StateChanges[0] != domain.PowerStateOff {
		t.Errorf("expected one off transition, got %v", h.channels.StateChanges)
	}

	// Notifier saw the completion
	if calls := h.notifier.Expired(); len(calls) != 1 || calls[0].ChannelID != 4 {
		t.Errorf("expected one expiry notification for channel 4, got %v", calls)
	}

	// Event published
	if msgs := h.queue.GetPublishedMessages("session.expired"); len(msgs) != 1 {
		t.Errorf("expected 1 expiry event, got %d", len(msgs))
	}
}

func TestExpiry_DuplicateFiringIsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 5, 10); err != nil {
		t.Fatalf("arm failed: %v", err)
	}

	h.advance(10 * time.Minute)
	h.fire(0)
	h.fire(0) // duplicate

	if len(h.ledger.Appended) != 1 {
		t.Fatalf("expected exactly one usage record after duplicate firing, got %d", len(h.ledger.Appended))
	}
}

func TestExpiry_AfterCancelIsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Arm(ctx, 5, 10); err != nil {
		t.Fatalf("arm failed: %v", err)
	}
	if _, err := h.engine.Cancel(ctx, 5); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	h.advance(10 * time.Minute)
	h.fire(0)

	if len(h.ledger.Appended) != 0 {
		t.Errorf("expected no usage records, got %d", len(h.ledger.Appended))
	}
}

func TestExpiry_CancelRace_ExactlyOneOutcome(t *testing.T) {
	// Cancel and expiry compete on the same channel; whichever removes
	// the pending context first wins and the loser is a no-op.
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		h := newHarness(t, testStart)

		if _, err := h.engine.Arm(ctx, 6, 10); err != nil {
			t.Fatalf("arm failed: %v", err)
		}
		h.advance(10 * time.Minute)

		var wg sync.WaitGroup
		var cancelled bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.fire(0)
		}()
		go func() {
			defer wg.Done()
			cancelled, _ = h.engine.Cancel(ctx, 6)
		}()
		wg.Wait()

		billed := len(h.ledger.Appended) == 1
		if cancelled == billed {
			t.Fatalf("run %d: expected exactly one of cancellation or billing, got cancelled=%v billed=%v",
				i, cancelled, billed)
		}
	}
}

func TestExpiry_LedgerWriteFailureKeepsChannelOff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)
	h.ledger.AppendFunc = func(ctx context.Context, record *domain.UsageRecord) error {
		return context.DeadlineExceeded
	}

	if _, err := h.engine.Arm(ctx, 7, 15); err != nil {
		t.Fatalf("arm failed: %v", err)
	}
	h.advance(15 * time.Minute)
	h.fire(0)

	// The record is lost, not retried; the off transition stands.
	if len(h.channels.StateChanges) != 1 || h.channels.StateChanges[0] != domain.PowerStateOff {
		t.Errorf("expected channel off despite ledger failure, got %v", h.channels.StateChanges)
	}
	if h.engine.HasActiveTimer(7) {
		t.Error("expected timer bookkeeping cleared despite ledger failure")
	}
}

func TestRemaining(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testStart)

	if _, err := h.engine.Remaining(ctx, 3); err != domain.ErrNoActiveTimer {
		t.Fatalf("expected ErrNoActiveTimer, got %v", err)
	}

	if _, err := h.engine.Arm(ctx, 3, 20); err != nil {
		t.Fatalf("arm failed: %v", err)
	}

	h.advance(5*time.Minute + 30*time.Second)

	remaining, err := h.engine.Remaining(ctx, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if remaining.Minutes != 14 || remaining.Seconds != 30 {
		t.Errorf("expected 14m30s remaining, got %dm%ds", remaining.Minutes, remaining.Seconds)
	}

	// Remaining never mutates state
	if !h.engine.HasActiveTimer(3) {
		t.Error("expected timer still active after Remaining")
	}
}
