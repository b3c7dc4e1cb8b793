package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/store"
	"snackpay/backend/internal/vendorsvc/catalog"
	"snackpay/backend/internal/xid"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Business-rule rejections. The HTTP layer maps these to 400 with a concrete
// message; store.ErrNotFound stays a 404.
var (
	ErrUnknownSKU   = errors.New("unknown sku")
	ErrQuoteExpired = errors.New("quote expired")
)

// Service is one vendor's quote, negotiation and cart surface. Profile knobs
// come from the catalog, entity state lives behind the VendorStore contract.
type Service struct {
	catalog *catalog.Store
	repo    store.VendorStore
	now     func() time.Time
}

func New(catalogStore *catalog.Store, repo store.VendorStore) *Service {
	return &Service{
		catalog: catalogStore,
		repo:    repo,
		now:     time.Now,
	}
}

func (s *Service) QueryCatalog(req domain.CatalogQueryRequest) domain.CatalogQueryResponse {
	return domain.CatalogQueryResponse{
		VendorID: s.catalog.Profile().VendorID,
		Items:    s.catalog.Query(req),
	}
}

// CreateQuote prices the requested lines against the catalog. Quantities are
// clamped up to the item's minimum order quantity; the volume discount is
// applied once, to the final total.
func (s *Service) CreateQuote(ctx context.Context, req domain.QuoteCreateRequest) (*domain.Quote, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item required", store.ErrInvalidRequest)
	}

	profile := s.catalog.Profile()
	now := s.now().UTC()

	lines := make([]domain.QuoteLineItem, 0, len(req.Items))
	total := int64(0)
	for _, item := range req.Items {
		catalogItem, ok := s.catalog.Get(item.SKU)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, item.SKU)
		}
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		if catalogItem.MinQuantity > quantity {
			quantity = catalogItem.MinQuantity
		}
		lineTotal := catalogItem.PriceCents * int64(quantity)
		lines = append(lines, domain.QuoteLineItem{
			SKU:            catalogItem.SKU,
			Name:           catalogItem.Name,
			Quantity:       quantity,
			UnitPriceCents: catalogItem.PriceCents,
			TotalCents:     lineTotal,
		})
		total += lineTotal
	}

	discounted := total
	if total > profile.DiscountThresholdCents {
		discounted = total * profile.RetainPercent / 100
	}

	quote := domain.Quote{
		ID:             xid.New("quote"),
		VendorID:       profile.VendorID,
		LineItems:      lines,
		TotalCents:     discounted,
		DeliveryWindow: deliveryWindow(profile, req.DeliveryDate, now),
		ExpiresAt:      now.Add(profile.QuoteValidity),
		PaymentTerms:   splitTerms(profile.InitialPercent, discounted),
		CreatedAt:      now,
	}

	if err := s.repo.PutQuote(ctx, quote); err != nil {
		return nil, err
	}

	logger.Info().
		Str("quote_id", quote.ID).
		Str("vendor_id", quote.VendorID).
		Int64("total_cents", quote.TotalCents).
		Msg("quote created")

	return &quote, nil
}

// Negotiate evaluates a counter-offer. Acceptance rewrites the stored quote
// in place under the same ID; rejection leaves it untouched and reports both
// the requested and the maximum tolerated discount.
func (s *Service) Negotiate(ctx context.Context, req domain.NegotiateRequest) (*domain.NegotiateResponse, error) {
	quote, err := s.repo.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}

	profile := s.catalog.Profile()
	current := quote.TotalCents
	requested := current
	if req.CounterOffer.TargetTotalCents != nil {
		requested = *req.CounterOffer.TargetTotalCents
	}

	requestedDiscount := 0.0
	if current > 0 {
		requestedDiscount = float64(current-requested) / float64(current)
	}

	if requestedDiscount > profile.MaxDiscount {
		logger.Info().
			Str("quote_id", req.QuoteID).
			Float64("requested_discount", requestedDiscount).
			Float64("max_discount", profile.MaxDiscount).
			Msg("counter-offer rejected")
		return &domain.NegotiateResponse{
			Accepted:          false,
			Message:           fmt.Sprintf("requested discount %.1f%% exceeds maximum %.1f%%; adjust quantities instead", requestedDiscount*100, profile.MaxDiscount*100),
			MaxDiscount:       profile.MaxDiscount,
			RequestedDiscount: requestedDiscount,
		}, nil
	}

	revised, err := s.repo.UpdateQuote(ctx, req.QuoteID, func(q domain.Quote) (domain.Quote, error) {
		if len(req.CounterOffer.AdjustedItems) > 0 {
			for _, adj := range req.CounterOffer.AdjustedItems {
				idx := -1
				for i := range q.LineItems {
					if q.LineItems[i].SKU == adj.SKU {
						idx = i
						break
					}
				}
				if idx < 0 {
					return q, fmt.Errorf("%w: %s not in quote", ErrUnknownSKU, adj.SKU)
				}
				quantity := adj.Quantity
				if quantity < 1 {
					quantity = 1
				}
				if item, ok := s.catalog.Get(adj.SKU); ok && item.MinQuantity > quantity {
					quantity = item.MinQuantity
				}
				q.LineItems[idx].Quantity = quantity
				q.LineItems[idx].TotalCents = q.LineItems[idx].UnitPriceCents * int64(quantity)
			}
			// Adjusted quantities supersede the target total: the anchor
			// was never a guaranteed price.
			sum := int64(0)
			for _, line := range q.LineItems {
				sum += line.TotalCents
			}
			q.TotalCents = sum
		} else {
			q.TotalCents = requested
		}

		if q.PaymentTerms != nil {
			q.PaymentTerms = splitTerms(q.PaymentTerms.InitialPercent, q.TotalCents)
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("quote_id", req.QuoteID).
		Int64("revised_total_cents", revised.TotalCents).
		Msg("counter-offer accepted")

	return &domain.NegotiateResponse{
		Accepted:          true,
		RevisedQuote:      revised,
		Message:           "counter-offer accepted",
		MaxDiscount:       profile.MaxDiscount,
		RequestedDiscount: requestedDiscount,
	}, nil
}

// LockCart snapshots a live quote into a time-locked cart. The snapshot is by
// value: later quote mutation never reaches the cart.
func (s *Service) LockCart(ctx context.Context, req domain.CartLockRequest) (*domain.CartLockResponse, error) {
	quote, err := s.repo.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if now.After(quote.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s expired at %s", ErrQuoteExpired, quote.ID, quote.ExpiresAt.Format(time.RFC3339))
	}

	profile := s.catalog.Profile()
	lines := make([]domain.QuoteLineItem, len(quote.LineItems))
	copy(lines, quote.LineItems)

	var terms *domain.PaymentTerms
	if quote.PaymentTerms != nil {
		copied := *quote.PaymentTerms
		terms = &copied
	}

	cart := domain.Cart{
		ID:             xid.New("cart"),
		QuoteID:        quote.ID,
		VendorID:       quote.VendorID,
		TotalCents:     quote.TotalCents,
		LineItems:      lines,
		DeliveryWindow: quote.DeliveryWindow,
		LockedUntil:    now.Add(profile.LockDuration),
		Status:         domain.CartStatusLocked,
		PaymentTerms:   terms,
		CreatedAt:      now,
	}

	if err := s.repo.PutCart(ctx, cart); err != nil {
		return nil, err
	}

	logger.Info().
		Str("cart_id", cart.ID).
		Str("quote_id", quote.ID).
		Time("locked_until", cart.LockedUntil).
		Msg("cart locked")

	return &domain.CartLockResponse{Cart: cart}, nil
}

// CartStatus reads a cart and lazily flips an overdue lock to expired. The
// expired transition is idempotent so a timer-less restart still converges.
func (s *Service) CartStatus(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if cart.Status == domain.CartStatusLocked && s.now().UTC().After(cart.LockedUntil) {
		return s.repo.UpdateCart(ctx, cartID, func(c domain.Cart) (domain.Cart, error) {
			if c.Status == domain.CartStatusLocked {
				c.Status = domain.CartStatusExpired
			}
			return c, nil
		})
	}

	return cart, nil
}

func splitTerms(initialPercent int64, total int64) *domain.PaymentTerms {
	if initialPercent <= 0 {
		return nil
	}
	initial := total * initialPercent / 100
	return &domain.PaymentTerms{
		InitialPercent: initialPercent,
		InitialCents:   initial,
		DeliveryCents:  total - initial,
	}
}

// deliveryWindow advances the requested date (default today) to the next day
// and fixes the vendor's delivery hours in UTC.
func deliveryWindow(profile catalog.Profile, deliveryDate string, now time.Time) domain.DeliveryWindow {
	base := now
	if deliveryDate != "" {
		if parsed, err := time.Parse("2006-01-02", deliveryDate); err == nil {
			base = parsed
		}
	}
	day := base.AddDate(0, 0, 1)
	return domain.DeliveryWindow{
		From: time.Date(day.Year(), day.Month(), day.Day(), profile.DeliveryFromHour, 0, 0, 0, time.UTC),
		To:   time.Date(day.Year(), day.Month(), day.Day(), profile.DeliveryToHour, 0, 0, 0, time.UTC),
	}
}
