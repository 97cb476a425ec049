package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/ports"
)

type ReportHandler struct {
	aggregator ports.AggregationService
	log        *zap.Logger
}

func NewReportHandler(aggregator ports.AggregationService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{
		aggregator: aggregator,
		log:        log,
	}
}

// RunMonthly triggers a full aggregation run. The run happens on the
// request goroutine; aggregation is user-triggered and small enough
// that a synchronous response is fine.
func (h *ReportHandler) RunMonthly(c *fiber.Ctx) error {
	result, err := h.aggregator.Run(c.Context())
	if err != nil {
		h.log.Error("Aggregation run failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}
