package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// StatsHandler serves the reporting and diagnostics endpoints.
type StatsHandler struct {
	service *service.StatsService
	metrics *observability.Metrics
}

// NewStatsHandler constructs handler.
func NewStatsHandler(statsService *service.StatsService, metrics *observability.Metrics) *StatsHandler {
	return &StatsHandler{service: statsService, metrics: metrics}
}

// Regions GET /stats/regions.
func (h *StatsHandler) Regions(c *fiber.Ctx) error {
	overview, err := h.service.RegionOverview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}

// SLA GET /stats/sla?year=2024&month=5. Defaults to the current month.
func (h *StatsHandler) SLA(c *fiber.Ctx) error {
	year, month, err := parseMonthQuery(c)
	if err != nil {
		return err
	}
	report, err := h.service.SLAReport(c.UserContext(), year, month)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Suppliers GET /stats/suppliers?year=2024&month=5.
func (h *StatsHandler) Suppliers(c *fiber.Ctx) error {
	year, month, err := parseMonthQuery(c)
	if err != nil {
		return err
	}
	ranking, err := h.service.SupplierRanking(c.UserContext(), year, month)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ranking})
}

// Insights GET /stats/insights.
func (h *StatsHandler) Insights(c *fiber.Ctx) error {
	results, err := h.service.Insights(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": results})
}

// SetRegionVisibility PUT /stats/regions/:regione/visibility.
func (h *StatsHandler) SetRegionVisibility(c *fiber.Ctx) error {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.SetRegionVisibility(c.UserContext(), c.Params("regione"), req.Visible); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"regione": c.Params("regione"), "visible": req.Visible}})
}

// Metrics GET /stats/metrics.
func (h *StatsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func parseMonthQuery(c *fiber.Ctx) (int, time.Month, error) {
	now := time.Now()
	year := now.Year()
	month := now.Month()

	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.NewValidationError("invalid year", map[string]any{"year": raw})
		}
		year = parsed
	}
	if raw := c.Query("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			return 0, 0, apperrors.NewValidationError("invalid month", map[string]any{"month": raw})
		}
		month = time.Month(parsed)
	}
	return year, month, nil
}
