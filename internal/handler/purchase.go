package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// PurchaseHandler serves the customer and admin purchase endpoints. JWT
// authentication and role checks are done by middleware.
type PurchaseHandler struct {
	svc *service.PurchaseService
	log *slog.Logger
}

// NewPurchaseHandler returns the purchase endpoints. It panics on a nil
// service; a nil logger means slog.Default.
func NewPurchaseHandler(svc *service.PurchaseService, logger *slog.Logger) *PurchaseHandler {
	if svc == nil {
		panic("nil purchase service passed to NewPurchaseHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseHandler{svc: svc, log: logger.With("component", "http")}
}

type createPurchaseRequest struct {
	EventID      uint64  `json:"event_id"`
	Quantity     int     `json:"quantity"`
	TicketType   string  `json:"ticket_type"`
	PaymentProof *string `json:"payment_proof"`
}

// Create handles POST /v1/purchases for the authenticated user.
func (h *PurchaseHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	}
	var req createPurchaseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tt, _ := model.ParseTicketType(req.TicketType)
	p, err := h.svc.CreatePurchase(c.Request().Context(), service.CreatePurchaseInput{
		UserID:       userID,
		EventID:      req.EventID,
		Quantity:     req.Quantity,
		TicketType:   tt,
		PaymentProof: req.PaymentProof,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// ListMine handles GET /v1/my-purchases.
func (h *PurchaseHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	}
	ps, err := h.svc.ListUserPurchases(c.Request().Context(), userID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ps})
}

// ListAll handles GET /v1/purchases (admin).
func (h *PurchaseHandler) ListAll(c echo.Context) error {
	ps, err := h.svc.ListPurchases(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ps})
}

// UpdateStatus handles PATCH /v1/purchases/:id/status (admin). The body
// is {"status": "PENDING" | "VALIDATED" | "CANCELLED"}.
func (h *PurchaseHandler) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid purchase id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	status, _ := model.ParsePurchaseStatus(req.Status)
	res, err := h.svc.TransitionStatus(c.Request().Context(), id, status)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"purchase":        res.Purchase,
		"previous_status": res.Previous,
		"changed":         res.Changed,
	})
}

// PurgeCancelled handles DELETE /v1/users/:id/purchases/cancelled (admin).
func (h *PurchaseHandler) PurgeCancelled(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	n, err := h.svc.PurgeCancelled(c.Request().Context(), userID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
