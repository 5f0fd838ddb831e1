package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quickqueue/helpdesk/internal/api/dto"
	"github.com/quickqueue/helpdesk/internal/auth"
	"github.com/quickqueue/helpdesk/internal/service"
	apperrors "github.com/quickqueue/helpdesk/pkg/util"
)

// ReportsHandler exposes aggregation and dashboard endpoints.
type ReportsHandler struct {
	service *service.ReportService
	now     func() time.Time
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService, now: time.Now}
}

// Summary GET /summary.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	summary, err := h.service.Summary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSummaryResponse(summary)})
}

// Monthly GET /analytics/monthly. Defaults to the current month.
func (h *ReportsHandler) Monthly(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	now := h.now()
	year := parseInt(c.Query("year"), now.Year())
	month := parseInt(c.Query("month"), int(now.Month()))
	breakdown, err := h.service.MonthlyBreakdown(c.UserContext(), actor, year, time.Month(month))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMonthlyResponse(breakdown)})
}

// Yearly GET /analytics/yearly. Defaults to the current year.
func (h *ReportsHandler) Yearly(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	year := parseInt(c.Query("year"), h.now().Year())
	breakdown, err := h.service.YearlyBreakdown(c.UserContext(), actor, year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.YearlyResponse{Year: breakdown.Year, ByMonth: breakdown.ByMonth}})
}

// Repeat GET /analytics/repeat.
func (h *ReportsHandler) Repeat(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	count, err := h.service.RepeatTicketCount(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RepeatResponse{RepeatTickets: count}})
}

// Stats GET /api/stats.
func (h *ReportsHandler) Stats(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.service.DashboardStats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatsResponse(stats)})
}
