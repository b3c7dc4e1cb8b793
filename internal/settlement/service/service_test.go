package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
	"snackpay/backend/internal/store/memory"
)

func newTestService(backend Backend) *Service {
	return New(memory.New(), backend)
}

func issueMandate(t *testing.T, svc *Service, ttlSeconds int64) *domain.MandateResponse {
	t.Helper()
	resp, err := svc.CreateMandate(context.Background(), domain.MandateCreateRequest{
		CartID:      "cart-1",
		PayerRef:    "payer-1",
		AmountCents: 54000,
		TTLSeconds:  ttlSeconds,
	})
	if err != nil {
		t.Fatalf("create mandate failed: %v", err)
	}
	return resp
}

func signChallenge(t *testing.T, challengeBase64 string, priv ed25519.PrivateKey) string {
	t.Helper()
	challenge, err := base64.StdEncoding.DecodeString(challengeBase64)
	if err != nil {
		t.Fatalf("decode challenge failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, challenge))
}

// failingPaymentStore rejects a fixed number of payment writes and then
// behaves like the memory store.
type failingPaymentStore struct {
	*memory.Store
	failures int
}

func (s *failingPaymentStore) PutPayment(ctx context.Context, payment domain.Payment) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("transient backend write failure")
	}
	return s.Store.PutPayment(ctx, payment)
}

func TestPayReleasesMandateWhenPaymentWriteFails(t *testing.T) {
	repo := &failingPaymentStore{Store: memory.New(), failures: 1}
	svc := New(repo, SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	req := domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	}
	if _, err := svc.Pay(ctx, req); err == nil {
		t.Fatalf("expected pay to surface the write failure")
	}

	stored, err := repo.GetMandate(ctx, mandate.MandateID)
	if err != nil {
		t.Fatalf("get mandate failed: %v", err)
	}
	if stored.Status != domain.MandateStatusActive {
		t.Fatalf("mandate must be released for retry, got %s", stored.Status)
	}

	// The retry consumes the mandate and settles normally.
	resp, err := svc.Pay(ctx, req)
	if err != nil {
		t.Fatalf("retry pay failed: %v", err)
	}
	status, err := svc.PaymentStatus(ctx, resp.PaymentID)
	if err != nil {
		t.Fatalf("payment status failed: %v", err)
	}
	if status.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed after retry, got %s", status.Status)
	}
}

func TestCreateMandateValidatesFields(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})

	_, err := svc.CreateMandate(context.Background(), domain.MandateCreateRequest{
		PayerRef:    "payer-1",
		AmountCents: 100,
		TTLSeconds:  60,
	})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing cart_id, got %v", err)
	}

	_, err = svc.CreateMandate(context.Background(), domain.MandateCreateRequest{
		CartID:     "cart-1",
		PayerRef:   "payer-1",
		TTLSeconds: 60,
	})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing amount, got %v", err)
	}
}

func TestPayCompletesWithSuccessfulRail(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	resp, err := svc.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	})
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	if resp.Status != domain.PaymentStatusProcessing {
		t.Fatalf("pay must return processing, got %s", resp.Status)
	}
	if resp.TransactionRef == "" {
		t.Fatalf("expected a transaction reference")
	}

	// Zero-delay backend resolves before Pay returns.
	status, err := svc.PaymentStatus(ctx, resp.PaymentID)
	if err != nil {
		t.Fatalf("payment status failed: %v", err)
	}
	if status.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	// Terminal status queries are idempotent.
	again, err := svc.PaymentStatus(ctx, resp.PaymentID)
	if err != nil {
		t.Fatalf("payment status failed: %v", err)
	}
	if again.Status != status.Status || again.AmountCents != status.AmountCents || again.FailureReason != status.FailureReason {
		t.Fatalf("terminal payment status changed between queries")
	}
}

func TestPayFailureCarriesReason(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 0})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	resp, err := svc.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	})
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	status, err := svc.PaymentStatus(ctx, resp.PaymentID)
	if err != nil {
		t.Fatalf("payment status failed: %v", err)
	}
	if status.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", status.Status)
	}
	if status.FailureReason == "" {
		t.Fatalf("failed payment must state a reason")
	}
}

func TestPayRejectsWrongKeypair(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	_, err = svc.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(otherPub),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// The failed verification must not consume the mandate.
	stored, err := svc.repo.GetMandate(ctx, mandate.MandateID)
	if err != nil {
		t.Fatalf("get mandate failed: %v", err)
	}
	if stored.Status != domain.MandateStatusActive {
		t.Fatalf("mandate should stay active after rejected signature, got %s", stored.Status)
	}
}

func TestPayRejectsMutatedChallenge(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	challenge, err := base64.StdEncoding.DecodeString(mandate.ChallengeBase64)
	if err != nil {
		t.Fatalf("decode challenge failed: %v", err)
	}
	challenge[0] ^= 0xff
	signature := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, challenge))

	_, err = svc.Pay(context.Background(), domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signature,
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestMandateIsSingleUse(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	req := domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	}
	if _, err := svc.Pay(ctx, req); err != nil {
		t.Fatalf("first pay failed: %v", err)
	}
	_, err = svc.Pay(ctx, req)
	if !errors.Is(err, ErrInvalidMandateState) {
		t.Fatalf("expected ErrInvalidMandateState on reuse, got %v", err)
	}
}

func TestExpiredMandateTransitionsOnPay(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, -1)

	_, err = svc.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	})
	if !errors.Is(err, ErrMandateExpired) {
		t.Fatalf("expected ErrMandateExpired, got %v", err)
	}

	stored, err := svc.repo.GetMandate(ctx, mandate.MandateID)
	if err != nil {
		t.Fatalf("get mandate failed: %v", err)
	}
	if stored.Status != domain.MandateStatusExpired {
		t.Fatalf("pay against an overdue mandate must expire it, got %s", stored.Status)
	}
}

func TestExpiryTimerNeverOverwritesUsedMandate(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	mandate := issueMandate(t, svc, 300)

	if _, err := svc.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signChallenge(t, mandate.ChallengeBase64, priv),
		PublicKeyBase64: base64.StdEncoding.EncodeToString(pub),
	}); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	// The scheduled transition firing late must be a no-op.
	svc.expireMandate(mandate.MandateID)

	stored, err := svc.repo.GetMandate(ctx, mandate.MandateID)
	if err != nil {
		t.Fatalf("get mandate failed: %v", err)
	}
	if stored.Status != domain.MandateStatusUsed {
		t.Fatalf("used mandate must never revert, got %s", stored.Status)
	}
}

func TestPaymentStatusUnknownID(t *testing.T) {
	svc := newTestService(SimulatedBackend{SuccessRate: 1})

	_, err := svc.PaymentStatus(context.Background(), "payment-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
