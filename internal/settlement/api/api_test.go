package api

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/settlement/service"
	"snackpay/backend/internal/store/memory"
)

func newTestServer() *echo.Echo {
	svc := service.New(memory.New(), service.SimulatedBackend{SuccessRate: 1})
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

func TestMandateCreateMissingFieldsIs400(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/mandate/create", `{"payer_ref":"payer-1","amount_cents":100,"ttl_seconds":60}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPayUnknownMandateIs404(t *testing.T) {
	e := newTestServer()

	sig := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	pub := base64.StdEncoding.EncodeToString(make([]byte, ed25519.PublicKeySize))
	rec := doJSON(t, e, http.MethodPost, "/pay",
		`{"mandate_id":"mandate-missing","signature_base64":"`+sig+`","public_key_base64":"`+pub+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMandatePayStatusRoundTrip(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/mandate/create",
		`{"cart_id":"cart-1","payer_ref":"payer-1","amount_cents":54000,"ttl_seconds":300}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("mandate create failed: %d %s", rec.Code, rec.Body.String())
	}
	var mandate domain.MandateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &mandate); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	challenge, err := base64.StdEncoding.DecodeString(mandate.ChallengeBase64)
	if err != nil {
		t.Fatalf("decode challenge failed: %v", err)
	}
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, challenge))
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	rec = doJSON(t, e, http.MethodPost, "/pay",
		`{"mandate_id":"`+mandate.MandateID+`","signature_base64":"`+sig+`","public_key_base64":"`+pubB64+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay failed: %d %s", rec.Code, rec.Body.String())
	}
	var pay domain.PayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pay); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	rec = doJSON(t, e, http.MethodGet, "/payment/status?paymentId="+pay.PaymentID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("payment status failed: %d %s", rec.Code, rec.Body.String())
	}
	var status domain.PaymentStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if status.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	// Reuse must be rejected as a 400.
	rec = doJSON(t, e, http.MethodPost, "/pay",
		`{"mandate_id":"`+mandate.MandateID+`","signature_base64":"`+sig+`","public_key_base64":"`+pubB64+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on mandate reuse, got %d", rec.Code)
	}
}

func TestPaymentStatusRequiresParam(t *testing.T) {
	e := newTestServer()

	rec := doJSON(t, e, http.MethodGet, "/payment/status", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
