package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
	"snackpay/backend/internal/vendorsvc/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/catalog/query", h.catalogQuery)
	e.POST("/quote/create", h.quoteCreate)
	e.POST("/negotiate", h.negotiate)
	e.POST("/cart/lock", h.cartLock)
	e.GET("/cart/status", h.cartStatus)
	e.GET("/health", h.health)
}

// errorJSON classifies service errors into the response taxonomy. Client
// errors carry the concrete reason; internal faults are logged and the caller
// gets a generic message.
func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidRequest),
		errors.Is(err, service.ErrUnknownSKU),
		errors.Is(err, service.ErrQuoteExpired):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) catalogQuery(c echo.Context) error {
	var req domain.CatalogQueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	return c.JSON(http.StatusOK, h.svc.QueryCatalog(req))
}

func (h *Handler) quoteCreate(c echo.Context) error {
	var req domain.QuoteCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	quote, err := h.svc.CreateQuote(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

func (h *Handler) negotiate(c echo.Context) error {
	var req domain.NegotiateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	resp, err := h.svc.Negotiate(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) cartLock(c echo.Context) error {
	var req domain.CartLockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	resp, err := h.svc.LockCart(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) cartStatus(c echo.Context) error {
	cartID := c.QueryParam("cartId")
	if cartID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "cartId query parameter required"})
	}
	cart, err := h.svc.CartStatus(c.Request().Context(), cartID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
