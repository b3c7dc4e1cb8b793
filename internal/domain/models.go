package domain

import "time"

// Money is carried as int64 cents everywhere. "Floor to the smallest currency
// unit" in discount and split-payment math is integer division on cents.

type CatalogItem struct {
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	PriceCents  int64    `json:"price_cents"`
	Category    string   `json:"category"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
	MinQuantity int      `json:"min_quantity,omitempty"`
	VendorID    string   `json:"vendor_id"`
}

type CatalogQueryRequest struct {
	Categories     []string `json:"categories,omitempty"`
	Dietary        []string `json:"dietary,omitempty"`
	MaxBudgetCents int64    `json:"max_budget_cents,omitempty"`
}

type CatalogQueryResponse struct {
	VendorID string        `json:"vendor_id"`
	Items    []CatalogItem `json:"items"`
}

type QuoteItemRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type QuoteCreateRequest struct {
	Items        []QuoteItemRequest `json:"items"`
	DeliveryDate string             `json:"delivery_date,omitempty"`
	Headcount    int                `json:"headcount,omitempty"`
}

// QuoteLineItem snapshots the unit price at quote time. Negotiation may
// replace Quantity and recompute TotalCents, never UnitPriceCents.
type QuoteLineItem struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type DeliveryWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// PaymentTerms splits a total into an immediate initial portion and a
// deferred delivery portion. InitialCents + DeliveryCents == the quote total.
type PaymentTerms struct {
	InitialPercent int64 `json:"initial_percent"`
	InitialCents   int64 `json:"initial_cents"`
	DeliveryCents  int64 `json:"delivery_cents"`
}

type Quote struct {
	ID             string          `json:"id"`
	VendorID       string          `json:"vendor_id"`
	LineItems      []QuoteLineItem `json:"line_items"`
	TotalCents     int64           `json:"total_cents"`
	DeliveryWindow DeliveryWindow  `json:"delivery_window"`
	ExpiresAt      time.Time       `json:"expires_at"`
	PaymentTerms   *PaymentTerms   `json:"payment_terms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CounterOffer struct {
	TargetTotalCents *int64             `json:"target_total_cents,omitempty"`
	AdjustedItems    []QuoteItemRequest `json:"adjusted_items,omitempty"`
	Notes            string             `json:"notes,omitempty"`
}

type NegotiateRequest struct {
	QuoteID      string       `json:"quote_id"`
	CounterOffer CounterOffer `json:"counter_offer"`
}

type NegotiateResponse struct {
	Accepted          bool    `json:"accepted"`
	RevisedQuote      *Quote  `json:"revised_quote,omitempty"`
	Message           string  `json:"message"`
	MaxDiscount       float64 `json:"max_discount"`
	RequestedDiscount float64 `json:"requested_discount"`
}

const (
	CartStatusLocked   = "locked"
	CartStatusExpired  = "expired"
	CartStatusReleased = "released"
)

// Cart is a value snapshot of its source quote; mutating the quote after the
// lock does not reach an already-locked cart.
type Cart struct {
	ID             string          `json:"id"`
	QuoteID        string          `json:"quote_id"`
	VendorID       string          `json:"vendor_id"`
	TotalCents     int64           `json:"total_cents"`
	LineItems      []QuoteLineItem `json:"line_items"`
	DeliveryWindow DeliveryWindow  `json:"delivery_window"`
	LockedUntil    time.Time       `json:"locked_until"`
	Status         string          `json:"status"`
	PaymentTerms   *PaymentTerms   `json:"payment_terms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CartLockRequest struct {
	QuoteID string `json:"quote_id"`
}

type CartLockResponse struct {
	Cart Cart `json:"cart"`
}

const (
	MandateStatusActive  = "active"
	MandateStatusUsed    = "used"
	MandateStatusExpired = "expired"
)

// Mandate is a time-bounded payment authorization challenge. Once status
// leaves active it never returns; at most one payment consumes a mandate.
type Mandate struct {
	ID          string            `json:"id"`
	CartID      string            `json:"cart_id"`
	PayerRef    string            `json:"payer_ref"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Challenge   []byte            `json:"challenge"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type MandateCreateRequest struct {
	CartID      string            `json:"cart_id"`
	PayerRef    string            `json:"payer_ref"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency,omitempty"`
	TTLSeconds  int64             `json:"ttl_seconds"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type MandateResponse struct {
	MandateID       string    `json:"mandate_id"`
	CartID          string    `json:"cart_id"`
	PayerRef        string    `json:"payer_ref"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
	ChallengeBase64 string    `json:"challenge_base64"`
}

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

type Payment struct {
	ID             string    `json:"id"`
	MandateID      string    `json:"mandate_id"`
	Status         string    `json:"status"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PaymentTerminal reports whether a payment status can no longer change.
func PaymentTerminal(status string) bool {
	return status == PaymentStatusCompleted ||
		status == PaymentStatusFailed ||
		status == PaymentStatusCancelled
}

type PayRequest struct {
	MandateID       string `json:"mandate_id"`
	SignatureBase64 string `json:"signature_base64"`
	PublicKeyBase64 string `json:"public_key_base64"`
}

type PayResponse struct {
	PaymentID      string    `json:"payment_id"`
	Status         string    `json:"status"`
	AmountCents    int64     `json:"amount_cents"`
	TransactionRef string    `json:"transaction_ref"`
	Processed      time.Time `json:"processed"`
}

type PaymentStatusResponse struct {
	PaymentID     string    `json:"payment_id"`
	MandateID     string    `json:"mandate_id"`
	Status        string    `json:"status"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	FailureReason string    `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VendorQuoteResult annotates one vendor's contribution to a comparison. A
// vendor that errored contributes a nil Quote and is never selected as best.
type VendorQuoteResult struct {
	VendorID string `json:"vendor_id"`
	Quote    *Quote `json:"quote,omitempty"`
	Error    string `json:"error,omitempty"`
}

type QuoteComparison struct {
	Results         []VendorQuoteResult `json:"results"`
	Best            *Quote              `json:"best,omitempty"`
	SavingsCents    int64               `json:"savings_cents"`
	PercentageSaved float64             `json:"percentage_saved"`
}

type Preference struct {
	Name        string   `json:"name"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
	BudgetCents int64    `json:"budget_cents"`
}
