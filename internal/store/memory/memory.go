package memory

import (
	"context"
	"sync"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
)

// Store is the default single-process backend. One RWMutex guards all four
// maps; update closures run while the write lock is held, which is what makes
// them atomic.
//
// Entities cross the store boundary as deep copies: the value handed to an
// update closure, the stored entity, and the value returned to the caller
// never share slices or maps. An update closure may mutate its argument
// freely and its error still aborts without touching stored state.
type Store struct {
	mu       sync.RWMutex
	quotes   map[string]domain.Quote
	carts    map[string]domain.Cart
	mandates map[string]domain.Mandate
	payments map[string]domain.Payment
}

func New() *Store {
	return &Store{
		quotes:   make(map[string]domain.Quote),
		carts:    make(map[string]domain.Cart),
		mandates: make(map[string]domain.Mandate),
		payments: make(map[string]domain.Payment),
	}
}

func cloneLineItems(items []domain.QuoteLineItem) []domain.QuoteLineItem {
	if items == nil {
		return nil
	}
	copied := make([]domain.QuoteLineItem, len(items))
	copy(copied, items)
	return copied
}

func cloneTerms(terms *domain.PaymentTerms) *domain.PaymentTerms {
	if terms == nil {
		return nil
	}
	copied := *terms
	return &copied
}

func cloneQuote(q domain.Quote) domain.Quote {
	q.LineItems = cloneLineItems(q.LineItems)
	q.PaymentTerms = cloneTerms(q.PaymentTerms)
	return q
}

func cloneCart(c domain.Cart) domain.Cart {
	c.LineItems = cloneLineItems(c.LineItems)
	c.PaymentTerms = cloneTerms(c.PaymentTerms)
	return c
}

func cloneMandate(m domain.Mandate) domain.Mandate {
	if m.Challenge != nil {
		challenge := make([]byte, len(m.Challenge))
		copy(challenge, m.Challenge)
		m.Challenge = challenge
	}
	if m.Metadata != nil {
		metadata := make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		m.Metadata = metadata
	}
	return m
}

func (s *Store) PutQuote(_ context.Context, quote domain.Quote) error {
	if quote.ID == "" {
		return store.ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[quote.ID] = cloneQuote(quote)
	return nil
}

func (s *Store) GetQuote(_ context.Context, id string) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneQuote(quote)
	return &copied, nil
}

func (s *Store) UpdateQuote(_ context.Context, id string, fn func(domain.Quote) (domain.Quote, error)) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := fn(cloneQuote(quote))
	if err != nil {
		return nil, err
	}
	updated.ID = id
	s.quotes[id] = cloneQuote(updated)
	copied := cloneQuote(updated)
	return &copied, nil
}

func (s *Store) PutCart(_ context.Context, cart domain.Cart) error {
	if cart.ID == "" {
		return store.ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (s *Store) GetCart(_ context.Context, id string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneCart(cart)
	return &copied, nil
}

func (s *Store) UpdateCart(_ context.Context, id string, fn func(domain.Cart) (domain.Cart, error)) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := fn(cloneCart(cart))
	if err != nil {
		return nil, err
	}
	updated.ID = id
	s.carts[id] = cloneCart(updated)
	copied := cloneCart(updated)
	return &copied, nil
}

func (s *Store) PutMandate(_ context.Context, mandate domain.Mandate) error {
	if mandate.ID == "" {
		return store.ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mandates[mandate.ID] = cloneMandate(mandate)
	return nil
}

func (s *Store) GetMandate(_ context.Context, id string) (*domain.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mandate, ok := s.mandates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneMandate(mandate)
	return &copied, nil
}

func (s *Store) UpdateMandate(_ context.Context, id string, fn func(domain.Mandate) (domain.Mandate, error)) (*domain.Mandate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mandate, ok := s.mandates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := fn(cloneMandate(mandate))
	if err != nil {
		return nil, err
	}
	updated.ID = id
	s.mandates[id] = cloneMandate(updated)
	copied := cloneMandate(updated)
	return &copied, nil
}

func (s *Store) PutPayment(_ context.Context, payment domain.Payment) error {
	if payment.ID == "" {
		return store.ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.ID] = payment
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payment, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := payment
	return &copied, nil
}

func (s *Store) UpdatePayment(_ context.Context, id string, fn func(domain.Payment) (domain.Payment, error)) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := fn(payment)
	if err != nil {
		return nil, err
	}
	updated.ID = id
	s.payments[id] = updated
	copied := updated
	return &copied, nil
}
