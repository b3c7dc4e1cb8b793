package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store/memory"
	"snackpay/backend/internal/vendorsvc/catalog"
	"snackpay/backend/internal/vendorsvc/service"
)

func newTestServer() *echo.Echo {
	svc := service.New(catalog.New(catalog.Standard()), memory.New())
	e := echo.New()
	NewHandler(svc).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCatalogQueryFilters(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/catalog/query", `{"categories":["savory"],"max_budget_cents":400}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp domain.CatalogQueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatalf("expected matches under 400c in savory")
	}
	for _, item := range resp.Items {
		if item.Category != "savory" || item.PriceCents > 400 {
			t.Fatalf("filter violated by %s", item.SKU)
		}
	}
}

func TestQuoteCreateUnknownSKUIs400(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/quote/create", `{"items":[{"sku":"NOPE","quantity":1}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNegotiateUnknownQuoteIs404(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/negotiate", `{"quote_id":"quote-missing","counter_offer":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQuoteLockFlow(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/quote/create", `{"items":[{"sku":"STD-GRAN-01","quantity":40}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote create failed: %d %s", rec.Code, rec.Body.String())
	}
	var quote domain.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	rec = doJSON(t, e, http.MethodPost, "/cart/lock", `{"quote_id":"`+quote.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cart lock failed: %d %s", rec.Code, rec.Body.String())
	}
	var lock domain.CartLockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &lock); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if lock.Cart.Status != domain.CartStatusLocked {
		t.Fatalf("expected locked cart, got %s", lock.Cart.Status)
	}

	rec = doJSON(t, e, http.MethodGet, "/cart/status?cartId="+lock.Cart.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cart status failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCartStatusRequiresParam(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodGet, "/cart/status", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
