package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/domain"
	"github.com/rentalku/relayd/internal/ports"
)

type ChannelHandler struct {
	service ports.ChannelService
	log     *zap.Logger
}

func NewChannelHandler(service ports.ChannelService, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{
		service: service,
		log:     log,
	}
}

func (h *ChannelHandler) List(c *fiber.Ctx) error {
	states, err := h.service.ListStates(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(states)
}

func (h *ChannelHandler) Get(c *fiber.Ctx) error {
	id, err := channelID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidChannel.Error()})
	}

	ch, err := h.service.GetChannel(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidChannel) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ch)
}

type updateStateRequest struct {
	State string `json:"state"`
}

func (h *ChannelHandler) UpdateState(c *fiber.Ctx) error {
	id, err := channelID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": domain.ErrInvalidChannel.Error()})
	}

	var req updateStateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	state := domain.PowerState(req.State)
	if state != domain.PowerStateOn && state != domain.PowerStateOff {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "state must be \"on\" or \"off\""})
	}

	if err := h.service.SetState(c.Context(), id, state); err != nil {
		if errors.Is(err, domain.ErrInvalidChannel) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Info("Channel state updated", zap.Int("channel", id), zap.String("state", req.State))
	return c.JSON(fiber.Map{"channel_id": id, "state": state})
}

func channelID(c *fiber.Ctx) (int, error) {
	return strconv.Atoi(c.Params("id"))
}
