package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/settlement/service"
	"snackpay/backend/internal/store"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/mandate/create", h.mandateCreate)
	e.POST("/pay", h.pay)
	e.GET("/payment/status", h.paymentStatus)
	e.GET("/health", h.health)
}

func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidMandateState),
		errors.Is(err, service.ErrMandateExpired),
		errors.Is(err, service.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) mandateCreate(c echo.Context) error {
	var req domain.MandateCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	resp, err := h.svc.CreateMandate(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) pay(c echo.Context) error {
	var req domain.PayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	resp, err := h.svc.Pay(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) paymentStatus(c echo.Context) error {
	paymentID := c.QueryParam("paymentId")
	if paymentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "paymentId query parameter required"})
	}
	resp, err := h.svc.PaymentStatus(c.Request().Context(), paymentID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
