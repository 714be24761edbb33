package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// EventHandler serves event administration and the public summary.
type EventHandler struct {
	svc *service.EventService
	log *slog.Logger
}

// NewEventHandler returns the admin event endpoints. It panics on a nil
// service; a nil logger means slog.Default.
func NewEventHandler(svc *service.EventService, logger *slog.Logger) *EventHandler {
	if svc == nil {
		panic("nil event service passed to NewEventHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{svc: svc, log: logger.With("component", "http")}
}

type createEventRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	StartsAt     time.Time       `json:"starts_at"`
	TotalTickets int             `json:"total_tickets"`
	NormalPrice  decimal.Decimal `json:"normal_price"`
	VIPPrice     decimal.Decimal `json:"vip_price"`
}

// Create handles POST /v1/events.
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := h.svc.CreateEvent(c.Request().Context(), service.CreateEventInput{
		Title:        req.Title,
		Description:  req.Description,
		StartsAt:     req.StartsAt,
		TotalTickets: req.TotalTickets,
		NormalPrice:  req.NormalPrice,
		VIPPrice:     req.VIPPrice,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// Summary handles GET /v1/events/:id/summary.
func (h *EventHandler) Summary(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	sum, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Resize handles PATCH /v1/events/:id/capacity with {"total_tickets": n}.
func (h *EventHandler) Resize(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req struct {
		TotalTickets int `json:"total_tickets"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	inv, err := h.svc.ResizeCapacity(c.Request().Context(), id, req.TotalTickets)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, inv)
}

// Delete handles DELETE /v1/events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	if err := h.svc.DeleteEvent(c.Request().Context(), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
