package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/ports"
)

type TimerHandler struct {
	timers   ports.TimerService
	channels ports.ChannelService
	log      *zap.Logger
}

func NewTimerHandler(timers ports.TimerService, channels ports.ChannelService, log *zap.Logger) *TimerHandler {
	return &TimerHandler{
		timers:   timers,
		channels: channels,
		log:      log,
	}
}

type armRequest struct {
	Minutes int `json:"minutes"`
}

// Arm starts a deferred-off timer. The engine only checks for an
// existing session; the on-state gate lives here, mirroring the UI
// that only offers the timer control while a channel is on.
func (h *TimerHandler) Arm(c *fiber.Ctx) error {
	id, err := channelID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidChannel.Error()})
	}

	var req armRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidDuration.Error()})
	}

	ch, err := h.channels.GetChannel(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidChannel) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if ch.State != domain.PowerStateOn {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Channel must be on to arm a timer"})
	}

	session, err := h.timers.Arm(c.Context(), id, req.Minutes)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDuration):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyTimed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *TimerHandler) Cancel(c *fiber.Ctx) error {
	id, err := channelID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidChannel.Error()})
	}

	cancelled, err := h.timers.Cancel(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidChannel) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !cancelled {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": domain.ErrNoActiveTimer.Error()})
	}

	return c.JSON(fiber.Map{"channel_id": id, "cancelled": true})
}

func (h *TimerHandler) Remaining(c *fiber.Ctx) error {
	id, err := channelID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidChannel.Error()})
	}

	remaining, err := h.timers.Remaining(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidChannel):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		case errors.Is(err, domain.ErrNoActiveTimer):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(remaining)
}
