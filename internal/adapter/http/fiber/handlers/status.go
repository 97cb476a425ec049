package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/ports"
	"github.com/rentalku/relayd/internal/service/channel"
)

// StatusHandler serves the legacy device poll endpoint: a flat JSON map
// of channel id to "on"/"off". External monitors have polled this shape
// since the first deployment, so it stays byte-compatible.
type StatusHandler struct {
	service ports.ChannelService
	cache   ports.Cache
	log     *zap.Logger
}

func NewStatusHandler(service ports.ChannelService, cache ports.Cache, log *zap.Logger) *StatusHandler {
	return &StatusHandler{
		service: service,
		cache:   cache,
		log:     log,
	}
}

func (h *StatusHandler) Get(c *fiber.Ctx) error {
	h.log.Debug("Status poll", zap.String("ip", c.IP()))

	if h.cache != nil {
		if cached, err := h.cache.Get(c.Context(), channel.StatusCacheKey()); err == nil && cached != "" {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(cached)
		}
	}

	snapshot, err := h.service.Snapshot(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snapshot)
}
