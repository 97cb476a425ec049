package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SimulatorConfig drives a scripted rental scenario against a running
// relayd instance: switch channels on, arm short timers, wait for the
// deferred-off expiries, then optionally trigger an aggregation run.
type SimulatorConfig struct {
	ServerURL      string
	ChannelCount   int
	SessionCount   int
	SessionMinutes int
	TriggerReport  bool
}

type Simulator struct {
	cfg    *SimulatorConfig
	client *http.Client
	log    *zap.Logger
}

func NewSimulator(cfg *SimulatorConfig, log *zap.Logger) *Simulator {
	return &Simulator{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (s *Simulator) Run() error {
	for i := 0; i < s.cfg.SessionCount; i++ {
		channelID := rand.Intn(s.cfg.ChannelCount) + 1

		if err := s.setState(channelID, "on"); err != nil {
			return fmt.Errorf("switch channel %d on: %w", channelID, err)
		}
		if err := s.armTimer(channelID, s.cfg.SessionMinutes); err != nil {
			s.log.Warn("Failed to arm timer, channel may already be timed",
				zap.Int("channel", channelID),
				zap.Error(err),
			)
			continue
		}

		s.log.Info("Session armed",
			zap.Int("channel", channelID),
			zap.Int("minutes", s.cfg.SessionMinutes),
		)
	}

	// Let the deferred-off timers run out before asking for a recap.
	wait := time.Duration(s.cfg.SessionMinutes)*time.Minute + 5*time.Second
	s.log.Info("Waiting for sessions to expire", zap.Duration("wait", wait))
	time.Sleep(wait)

	if s.cfg.TriggerReport {
		if err := s.runReport(); err != nil {
			return fmt.Errorf("trigger report: %w", err)
		}
	}

	return s.printStatus()
}

func (s *Simulator) setState(channelID int, state string) error {
	body, _ := json.Marshal(map[string]string{"state": state})
	url := fmt.Sprintf("%s/api/v1/channels/%d/state", s.cfg.ServerURL, channelID)

	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Simulator) armTimer(channelID, minutes int) error {
	body, _ := json.Marshal(map[string]int{"minutes": minutes})
	url := fmt.Sprintf("%s/api/v1/channels/%d/timer", s.cfg.ServerURL, channelID)

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Simulator) runReport() error {
	url := fmt.Sprintf("%s/api/v1/reports/monthly", s.cfg.ServerURL)

	resp, err := s.client.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	s.log.Info("Aggregation run finished", zap.Any("result", result))
	return nil
}

func (s *Simulator) printStatus() error {
	resp, err := s.client.Get(s.cfg.ServerURL + "/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var status map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return err
	}
	s.log.Info("Final channel status", zap.Any("status", status))
	return nil
}
