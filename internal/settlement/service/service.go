package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
	"snackpay/backend/internal/xid"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Business-rule rejections, all 400 at the boundary.
var (
	ErrInvalidMandateState = errors.New("mandate not in active state")
	ErrMandateExpired      = errors.New("mandate expired")
	ErrInvalidSignature    = errors.New("signature verification failed")
)

// challengePayload fixes the byte layout of the signing challenge. Field
// order matters: the payer signs these exact bytes, and the encoding binds
// the signature to one mandate's identity and terms.
type challengePayload struct {
	MandateID   string `json:"mandate_id"`
	CartID      string `json:"cart_id"`
	PayerRef    string `json:"payer_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	TTLSeconds  int64  `json:"ttl_seconds"`
	IssuedAtMS  int64  `json:"issued_at_ms"`
}

// Outcome is a settlement rail's terminal verdict on a submitted payment.
type Outcome struct {
	Status        string
	FailureReason string
}

// Backend is the settlement rail seam. Submit must eventually call done with
// a terminal outcome; the reference simulation is only a default stand-in.
type Backend interface {
	Submit(payment domain.Payment, done func(Outcome))
}

// SimulatedBackend resolves payments after a fixed delay, succeeding with
// probability SuccessRate.
type SimulatedBackend struct {
	Delay       time.Duration
	SuccessRate float64
}

func (b SimulatedBackend) Submit(payment domain.Payment, done func(Outcome)) {
	resolve := func() {
		if rand.Float64() < b.SuccessRate {
			done(Outcome{Status: domain.PaymentStatusCompleted})
			return
		}
		done(Outcome{Status: domain.PaymentStatusFailed, FailureReason: "settlement declined by rail"})
	}
	if b.Delay <= 0 {
		resolve()
		return
	}
	time.AfterFunc(b.Delay, resolve)
}

// Service issues mandates and settles signed payments against them.
type Service struct {
	repo    store.SettlementStore
	backend Backend
	now     func() time.Time
}

func New(repo store.SettlementStore, backend Backend) *Service {
	if backend == nil {
		backend = SimulatedBackend{Delay: 2 * time.Second, SuccessRate: 0.9}
	}
	return &Service{
		repo:    repo,
		backend: backend,
		now:     time.Now,
	}
}

// CreateMandate issues an active mandate with a deterministic signing
// challenge and schedules its expiry. The timer transition is conditional on
// the mandate still being active; the pay-time check remains authoritative.
func (s *Service) CreateMandate(ctx context.Context, req domain.MandateCreateRequest) (*domain.MandateResponse, error) {
	if req.CartID == "" || req.PayerRef == "" {
		return nil, fmt.Errorf("%w: cart_id and payer_ref required", store.ErrInvalidRequest)
	}
	if req.AmountCents < 1 {
		return nil, fmt.Errorf("%w: amount_cents must be positive", store.ErrInvalidRequest)
	}
	if req.TTLSeconds == 0 {
		return nil, fmt.Errorf("%w: ttl_seconds required", store.ErrInvalidRequest)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := s.now().UTC()
	id := xid.New("mandate")
	challenge, err := json.Marshal(challengePayload{
		MandateID:   id,
		CartID:      req.CartID,
		PayerRef:    req.PayerRef,
		AmountCents: req.AmountCents,
		Currency:    currency,
		TTLSeconds:  req.TTLSeconds,
		IssuedAtMS:  now.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	mandate := domain.Mandate{
		ID:          id,
		CartID:      req.CartID,
		PayerRef:    req.PayerRef,
		AmountCents: req.AmountCents,
		Currency:    currency,
		Challenge:   challenge,
		Status:      domain.MandateStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(req.TTLSeconds) * time.Second),
		Metadata:    req.Metadata,
	}
	if err := s.repo.PutMandate(ctx, mandate); err != nil {
		return nil, err
	}

	ttl := mandate.ExpiresAt.Sub(now)
	if ttl > 0 {
		time.AfterFunc(ttl, func() { s.expireMandate(id) })
	}

	logger.Info().
		Str("mandate_id", id).
		Str("cart_id", req.CartID).
		Int64("amount_cents", req.AmountCents).
		Time("expires_at", mandate.ExpiresAt).
		Msg("mandate issued")

	return &domain.MandateResponse{
		MandateID:       id,
		CartID:          mandate.CartID,
		PayerRef:        mandate.PayerRef,
		AmountCents:     mandate.AmountCents,
		Currency:        mandate.Currency,
		Status:          mandate.Status,
		ExpiresAt:       mandate.ExpiresAt,
		ChallengeBase64: base64.StdEncoding.EncodeToString(mandate.Challenge),
	}, nil
}

// expireMandate flips active to expired. A used mandate is never overwritten.
func (s *Service) expireMandate(id string) {
	_, err := s.repo.UpdateMandate(context.Background(), id, func(m domain.Mandate) (domain.Mandate, error) {
		if m.Status != domain.MandateStatusActive {
			return m, nil
		}
		m.Status = domain.MandateStatusExpired
		return m, nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error().Err(err).Str("mandate_id", id).Msg("mandate expiry transition failed")
	}
}

// releaseMandate reverts used to active after payment creation failed. Only
// the used state is reverted; an expiry that raced in stays expired.
func (s *Service) releaseMandate(ctx context.Context, id string) {
	_, err := s.repo.UpdateMandate(ctx, id, func(m domain.Mandate) (domain.Mandate, error) {
		if m.Status == domain.MandateStatusUsed {
			m.Status = domain.MandateStatusActive
		}
		return m, nil
	})
	if err != nil {
		logger.Error().Err(err).Str("mandate_id", id).Msg("mandate release failed")
	}
}

// Pay verifies a signed mandate and opens a processing payment. The mandate
// is consumed atomically: whatever closure error aborts the update also
// leaves the mandate untouched, and at most one caller can win the
// active-to-used transition.
func (s *Service) Pay(ctx context.Context, req domain.PayRequest) (*domain.PayResponse, error) {
	if req.MandateID == "" || req.SignatureBase64 == "" || req.PublicKeyBase64 == "" {
		return nil, fmt.Errorf("%w: mandate_id, signature_base64 and public_key_base64 required", store.ErrInvalidRequest)
	}

	signature, err := base64.StdEncoding.DecodeString(req.SignatureBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature_base64 is not valid base64", store.ErrInvalidRequest)
	}
	publicKey, err := base64.StdEncoding.DecodeString(req.PublicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: public_key_base64 is not valid base64", store.ErrInvalidRequest)
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key size %d", ErrInvalidSignature, len(publicKey))
	}

	now := s.now().UTC()

	// Lazy expiry before consumption: an overdue mandate transitions to
	// expired even when its timer never fired.
	mandate, err := s.repo.GetMandate(ctx, req.MandateID)
	if err != nil {
		return nil, err
	}
	if mandate.Status == domain.MandateStatusActive && now.After(mandate.ExpiresAt) {
		s.expireMandate(req.MandateID)
		return nil, fmt.Errorf("%w: %s", ErrMandateExpired, req.MandateID)
	}

	consumed, err := s.repo.UpdateMandate(ctx, req.MandateID, func(m domain.Mandate) (domain.Mandate, error) {
		if m.Status != domain.MandateStatusActive {
			return m, fmt.Errorf("%w: %s is %s", ErrInvalidMandateState, m.ID, m.Status)
		}
		if now.After(m.ExpiresAt) {
			return m, fmt.Errorf("%w: %s", ErrMandateExpired, m.ID)
		}
		if !ed25519.Verify(ed25519.PublicKey(publicKey), m.Challenge, signature) {
			return m, fmt.Errorf("%w: mandate %s", ErrInvalidSignature, m.ID)
		}
		m.Status = domain.MandateStatusUsed
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	payment := domain.Payment{
		ID:             xid.New("payment"),
		MandateID:      consumed.ID,
		Status:         domain.PaymentStatusProcessing,
		AmountCents:    consumed.AmountCents,
		Currency:       consumed.Currency,
		TransactionRef: xid.TransactionRef(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.PutPayment(ctx, payment); err != nil {
		// The mandate was consumed but no payment exists. Hand it back so
		// the payer can retry instead of stranding it at used.
		s.releaseMandate(ctx, consumed.ID)
		return nil, err
	}

	s.backend.Submit(payment, func(outcome Outcome) { s.resolvePayment(payment.ID, outcome) })

	logger.Info().
		Str("payment_id", payment.ID).
		Str("mandate_id", consumed.ID).
		Str("transaction_ref", payment.TransactionRef).
		Msg("payment processing")

	return &domain.PayResponse{
		PaymentID:      payment.ID,
		Status:         payment.Status,
		AmountCents:    payment.AmountCents,
		TransactionRef: payment.TransactionRef,
		Processed:      now,
	}, nil
}

// resolvePayment applies the rail's verdict. Terminal payments never change
// again, so a late or duplicate callback is a no-op.
func (s *Service) resolvePayment(paymentID string, outcome Outcome) {
	_, err := s.repo.UpdatePayment(context.Background(), paymentID, func(p domain.Payment) (domain.Payment, error) {
		if domain.PaymentTerminal(p.Status) {
			return p, nil
		}
		p.Status = outcome.Status
		p.FailureReason = outcome.FailureReason
		p.UpdatedAt = s.now().UTC()
		return p, nil
	})
	if err != nil {
		logger.Error().Err(err).Str("payment_id", paymentID).Msg("payment resolution failed")
		return
	}
	logger.Info().
		Str("payment_id", paymentID).
		Str("status", outcome.Status).
		Msg("payment resolved")
}

func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentStatusResponse, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id required", store.ErrInvalidRequest)
	}
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentStatusResponse{
		PaymentID:     payment.ID,
		MandateID:     payment.MandateID,
		Status:        payment.Status,
		AmountCents:   payment.AmountCents,
		Currency:      payment.Currency,
		FailureReason: payment.FailureReason,
		UpdatedAt:     payment.UpdatedAt,
	}, nil
}
