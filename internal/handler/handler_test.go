package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-ticketing/internal/service"
)

func TestFailMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: quantity must be positive", service.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{fmt.Errorf("%w: 9", service.ErrEventNotFound), http.StatusNotFound, "EVENT_NOT_FOUND"},
		{service.ErrPurchaseNotFound, http.StatusNotFound, "NOT_FOUND"},
		{service.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
		{service.ErrOutOfStockOnReactivate, http.StatusConflict, "OUT_OF_STOCK_ON_REACTIVATE"},
		{service.ErrCapacityBelowCommitted, http.StatusConflict, "CAPACITY_BELOW_COMMITTED"},
		{service.ErrEventInUse, http.StatusConflict, "EVENT_IN_USE"},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			assert.NoError(t, fail(c, nil, tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tc.code+`"`)
		})
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	assert.NoError(t, fail(c, nil, errors.New("password=hunter2 rejected")))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	assert.NoError(t, Ready(pinger{})(e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	assert.NoError(t, Ready(pinger{err: errors.New("down")})(e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
