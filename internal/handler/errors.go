package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// errorCodes maps service errors to a status and a stable code. Order
// matters: the first match wins.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{service.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
	{service.ErrPurchaseNotFound, http.StatusNotFound, "NOT_FOUND"},
	{service.ErrOutOfStockOnReactivate, http.StatusConflict, "OUT_OF_STOCK_ON_REACTIVATE"},
	{service.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{service.ErrCapacityBelowCommitted, http.StatusConflict, "CAPACITY_BELOW_COMMITTED"},
	{service.ErrEventInUse, http.StatusConflict, "EVENT_IN_USE"},
}

func errorJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// fail writes the response for a service error. Unknown errors are
// storage or transport faults and are logged instead of echoed.
func fail(c echo.Context, log *slog.Logger, err error) error {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return errorJSON(c, m.status, m.code, err.Error())
		}
	}
	if log == nil {
		log = slog.Default()
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return errorJSON(c, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func badRequest(c echo.Context, msg string) error {
	return errorJSON(c, http.StatusBadRequest, "INVALID_INPUT", msg)
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}
