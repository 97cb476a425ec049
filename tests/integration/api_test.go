package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/adapter/cache"
	"github.com/rentalku/relayd/internal/adapter/http/fiber/handlers"
	"github.com/rentalku/relayd/internal/adapter/http/fiber/middleware"
	"github.com/rentalku/relayd/internal/mocks"
	"github.com/rentalku/relayd/internal/service/billing"
	"github.com/rentalku/relayd/internal/service/channel"
	"github.com/rentalku/relayd/internal/service/timer"
)

// setupTestApp wires a full in-process API: real registry, real timer
// engine, local cache, mock queue. No containers needed.
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	localCache := cache.NewLocalCache(time.Minute, logger)
	mq := mocks.NewMockMessageQueue()

	prices := map[int]int64{
		1: 10000, 2: 10000, 3: 12000, 4: 8000,
		5: 10000, 6: 10000, 7: 15000, 8: 10000,
	}

	calc := billing.NewCalculator(nil)
	channelService := channel.NewService(8, prices, localCache, mq, nil, logger)
	ledger := &mocks.MockUsageLedger{}
	timerEngine := timer.NewEngine(channelService, calc, ledger, mq, nil, logger)
	channelService.AttachTimers(timerEngine, timerEngine.HasActiveTimer)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	channelHandler := handlers.NewChannelHandler(channelService, logger)
	timerHandler := handlers.NewTimerHandler(timerEngine, channelService, logger)
	statusHandler := handlers.NewStatusHandler(channelService, localCache, logger)

	app.Get("/status", statusHandler.Get)

	v1 := app.Group("/api/v1")
	v1.Get("/channels", channelHandler.List)
	v1.Get("/channels/:id", channelHandler.Get)
	v1.Patch("/channels/:id/state", channelHandler.UpdateState)
	v1.Post("/channels/:id/timer", timerHandler.Arm)
	v1.Delete("/channels/:id/timer", timerHandler.Cancel)
	v1.Get("/channels/:id/timer", timerHandler.Remaining)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) *http.Response {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func TestAPI_ListChannels(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/channels", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var states []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(states) != 8 {
		t.Fatalf("expected 8 channels, got %d", len(states))
	}
	if states[0]["state"] != "off" {
		t.Errorf("expected channel 1 off, got %v", states[0]["state"])
	}
}

func TestAPI_UpdateChannelState(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPatch, "/api/v1/channels/3/state", map[string]string{"state": "on"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, "/api/v1/channels/3", nil)
	defer resp.Body.Close()

	var ch map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if ch["state"] != "on" {
		t.Errorf("expected channel 3 on, got %v", ch["state"])
	}

	// Unknown channel and bad state both reject
	resp = doJSON(t, app, http.MethodPatch, "/api/v1/channels/42/state", map[string]string{"state": "on"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown channel, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPatch, "/api/v1/channels/3/state", map[string]string{"state": "standby"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad state, got %d", resp.StatusCode)
	}
}

func TestAPI_TimerFlow(t *testing.T) {
	app := setupTestApp(t)

	// Arming requires the channel to be on
	resp := doJSON(t, app, http.MethodPost, "/api/v1/channels/4/timer", map[string]int{"minutes": 20})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while channel is off, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPatch, "/api/v1/channels/4/state", map[string]string{"state": "on"})
	resp.Body.Close()

	// Arm
	resp = doJSON(t, app, http.MethodPost, "/api/v1/channels/4/timer", map[string]int{"minutes": 20})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var session map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	resp.Body.Close()
	if session["duration_minutes"] != float64(20) {
		t.Errorf("expected duration 20, got %v", session["duration_minutes"])
	}

	// Double arm is rejected
	resp = doJSON(t, app, http.MethodPost, "/api/v1/channels/4/timer", map[string]int{"minutes": 10})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 on double arm, got %d", resp.StatusCode)
	}

	// Remaining
	resp = doJSON(t, app, http.MethodGet, "/api/v1/channels/4/timer", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from remaining, got %d", resp.StatusCode)
	}
	var remaining map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&remaining); err != nil {
		t.Fatalf("failed to decode remaining: %v", err)
	}
	resp.Body.Close()
	if remaining["minutes"].(float64) > 20 {
		t.Errorf("remaining exceeds armed duration: %v", remaining["minutes"])
	}

	// Cancel
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/channels/4/timer", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from cancel, got %d", resp.StatusCode)
	}

	// Second cancel finds nothing
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/channels/4/timer", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on repeated cancel, got %d", resp.StatusCode)
	}
}

func TestAPI_ManualOffCancelsTimer(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPatch, "/api/v1/channels/2/state", map[string]string{"state": "on"})
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/channels/2/timer", map[string]int{"minutes": 30})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("arm failed with %d", resp.StatusCode)
	}

	// Manual off discards the session
	resp = doJSON(t, app, http.MethodPatch, "/api/v1/channels/2/state", map[string]string{"state": "off"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("off failed with %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, "/api/v1/channels/2/timer", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected no timer after manual off, got %d", resp.StatusCode)
	}
}

func TestAPI_StatusPoll(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPatch, "/api/v1/channels/5/state", map[string]string{"state": "on"})
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/status", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snapshot map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if len(snapshot) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(snapshot))
	}
	if snapshot["5"] != "on" {
		t.Errorf("expected channel 5 on, got %q", snapshot["5"])
	}
}

func TestAPI_InvalidChannelParam(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/channels/abc", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", resp.StatusCode)
	}
}
