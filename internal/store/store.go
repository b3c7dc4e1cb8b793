package store

import (
	"context"
	"errors"

	"snackpay/backend/internal/domain"
)

var (
	// ErrNotFound signals an unknown quote/cart/mandate/payment ID.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals missing or malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConflict signals an atomic update that lost against a concurrent
	// writer and should not be retried blindly.
	ErrConflict = errors.New("conflict")
)

// VendorStore holds the vendor-side entities (quotes and carts) keyed by ID.
// Update* runs fn as an atomic read-modify-write: implementations guarantee
// that no concurrent mutation interleaves between the read and the write. fn
// returning an error aborts the update without mutating anything.
type VendorStore interface {
	PutQuote(ctx context.Context, quote domain.Quote) error
	GetQuote(ctx context.Context, id string) (*domain.Quote, error)
	UpdateQuote(ctx context.Context, id string, fn func(domain.Quote) (domain.Quote, error)) (*domain.Quote, error)

	PutCart(ctx context.Context, cart domain.Cart) error
	GetCart(ctx context.Context, id string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, id string, fn func(domain.Cart) (domain.Cart, error)) (*domain.Cart, error)
}

// SettlementStore holds the settlement-side entities (mandates and payments)
// keyed by ID, with the same atomic-update contract as VendorStore.
type SettlementStore interface {
	PutMandate(ctx context.Context, mandate domain.Mandate) error
	GetMandate(ctx context.Context, id string) (*domain.Mandate, error)
	UpdateMandate(ctx context.Context, id string, fn func(domain.Mandate) (domain.Mandate, error)) (*domain.Mandate, error)

	PutPayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, id string, fn func(domain.Payment) (domain.Payment, error)) (*domain.Payment, error)
}
