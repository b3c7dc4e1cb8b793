package agent

import (
	"context"
	"fmt"
	"time"

	"snackpay/backend/internal/audit"
	"snackpay/backend/internal/domain"
	"snackpay/backend/internal/notify"
	"snackpay/backend/internal/prefs"
	"snackpay/backend/internal/xid"
)

// FlowResult is the structured outcome of one purchase run. On failure the
// steps executed so far are preserved; a partial run is never reported as a
// silent success.
type FlowResult struct {
	FlowID          string                        `json:"flow_id"`
	Steps           []string                      `json:"steps"`
	Success         bool                          `json:"success"`
	Error           string                        `json:"error,omitempty"`
	Comparison      *domain.QuoteComparison       `json:"comparison,omitempty"`
	Negotiation     *domain.NegotiateResponse     `json:"negotiation,omitempty"`
	Cart            *domain.Cart                  `json:"cart,omitempty"`
	InitialPayment  *domain.PaymentStatusResponse `json:"initial_payment,omitempty"`
	DeliveryMandate *domain.MandateResponse       `json:"delivery_mandate,omitempty"`
}

// Flow drives one end-to-end purchase: preferences, vendor comparison,
// negotiation, cart lock, mandate signing, settlement wait.
type Flow struct {
	prefs      prefs.Source
	comparator *Comparator
	settlement *SettlementClient
	signer     *Signer
	waiter     *Waiter
	notifier   notify.Notifier
	auditor    audit.Sink

	payerRef string

	// Counter-offer ambition in percent off the best quote. Rejection is
	// not fatal; the original quote stands.
	counterOfferPercent int64

	mandateTTL time.Duration
}

func NewFlow(
	source prefs.Source,
	comparator *Comparator,
	settlement *SettlementClient,
	signer *Signer,
	waiter *Waiter,
	notifier notify.Notifier,
	auditor audit.Sink,
	payerRef string,
) *Flow {
	return &Flow{
		prefs:               source,
		comparator:          comparator,
		settlement:          settlement,
		signer:              signer,
		waiter:              waiter,
		notifier:            notifier,
		auditor:             auditor,
		payerRef:            payerRef,
		counterOfferPercent: 5,
		mandateTTL:          5 * time.Minute,
	}
}

func (f *Flow) publish(ctx context.Context, eventType string, payload map[string]any) {
	if err := f.notifier.Publish(ctx, notify.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("notification delivery failed")
	}
}

func (f *Flow) fail(ctx context.Context, result *FlowResult, stage string, err error) *FlowResult {
	result.Error = fmt.Sprintf("%s: %v", stage, err)
	f.auditor.Record(result.FlowID, "flow_failed", map[string]any{"stage": stage, "error": err.Error()}, "error")
	f.publish(ctx, notify.EventError, map[string]any{"flow_id": result.FlowID, "stage": stage, "error": err.Error()})
	logger.Error().Err(err).Str("flow_id", result.FlowID).Str("stage", stage).Msg("purchase flow failed")
	return result
}

func (f *Flow) step(result *FlowResult, name string, data map[string]any) {
	result.Steps = append(result.Steps, name)
	f.auditor.Record(result.FlowID, name, data, "info")
}

// Run executes the purchase flow once. A single vendor failing is recoverable
// inside the comparison; zero vendors quoting and settlement timeout are
// flow-fatal.
func (f *Flow) Run(ctx context.Context) *FlowResult {
	result := &FlowResult{FlowID: xid.New("flow"), Steps: make([]string, 0, 10)}

	preferences, err := f.prefs.Load(ctx)
	if err != nil || len(preferences) == 0 {
		preferences = prefs.Defaults()
	}
	merged := mergePreferences(preferences)
	headcount := len(preferences)
	f.step(result, "load_preferences", map[string]any{"headcount": headcount, "dietary": merged.DietaryTags})

	comparison, err := f.comparator.Compare(ctx, merged, headcount)
	if err != nil {
		return f.fail(ctx, result, "compare_quotes", err)
	}
	result.Comparison = comparison
	f.step(result, "compare_quotes", map[string]any{
		"best_vendor":   comparison.Best.VendorID,
		"best_total":    comparison.Best.TotalCents,
		"savings_cents": comparison.SavingsCents,
	})
	f.publish(ctx, notify.EventSnackOptions, map[string]any{
		"flow_id":          result.FlowID,
		"best_vendor":      comparison.Best.VendorID,
		"best_total_cents": comparison.Best.TotalCents,
		"percentage_saved": comparison.PercentageSaved,
	})

	vendor := f.vendorForBest(comparison)
	if vendor == nil {
		return f.fail(ctx, result, "compare_quotes", fmt.Errorf("no client for vendor %s", comparison.Best.VendorID))
	}

	activeQuote := comparison.Best
	if f.counterOfferPercent > 0 {
		target := activeQuote.TotalCents * (100 - f.counterOfferPercent) / 100
		negotiation, err := vendor.Negotiate(ctx, domain.NegotiateRequest{
			QuoteID: activeQuote.ID,
			CounterOffer: domain.CounterOffer{
				TargetTotalCents: &target,
				Notes:            "volume order, seeking a modest accommodation",
			},
		})
		if err != nil {
			return f.fail(ctx, result, "negotiate", err)
		}
		result.Negotiation = negotiation
		if negotiation.Accepted && negotiation.RevisedQuote != nil {
			activeQuote = negotiation.RevisedQuote
		}
		f.step(result, "negotiate", map[string]any{
			"accepted":    negotiation.Accepted,
			"total_cents": activeQuote.TotalCents,
		})
	}

	f.publish(ctx, notify.EventApprovalRequest, map[string]any{
		"flow_id":     result.FlowID,
		"vendor_id":   activeQuote.VendorID,
		"total_cents": activeQuote.TotalCents,
	})

	lock, err := vendor.LockCart(ctx, domain.CartLockRequest{QuoteID: activeQuote.ID})
	if err != nil {
		return f.fail(ctx, result, "lock_cart", err)
	}
	cart := lock.Cart
	result.Cart = &cart
	f.step(result, "lock_cart", map[string]any{"cart_id": cart.ID, "locked_until": cart.LockedUntil})

	// Split terms mandate only the initial portion now; the delivery
	// portion gets its own mandate with a TTL reaching the delivery window.
	initialAmount := cart.TotalCents
	if cart.PaymentTerms != nil {
		initialAmount = cart.PaymentTerms.InitialCents
	}

	mandate, err := f.settlement.CreateMandate(ctx, domain.MandateCreateRequest{
		CartID:      cart.ID,
		PayerRef:    f.payerRef,
		AmountCents: initialAmount,
		TTLSeconds:  int64(f.mandateTTL / time.Second),
		Metadata:    map[string]string{"flow_id": result.FlowID, "portion": "initial"},
	})
	if err != nil {
		return f.fail(ctx, result, "create_mandate", err)
	}
	f.step(result, "create_mandate", map[string]any{"mandate_id": mandate.MandateID, "amount_cents": initialAmount})

	signature, err := f.signer.SignChallenge(mandate.ChallengeBase64)
	if err != nil {
		return f.fail(ctx, result, "sign_mandate", err)
	}
	payment, err := f.settlement.Pay(ctx, domain.PayRequest{
		MandateID:       mandate.MandateID,
		SignatureBase64: signature,
		PublicKeyBase64: f.signer.PublicKeyBase64(),
	})
	if err != nil {
		return f.fail(ctx, result, "pay", err)
	}
	f.step(result, "pay", map[string]any{"payment_id": payment.PaymentID, "transaction_ref": payment.TransactionRef})

	if cart.PaymentTerms != nil && cart.PaymentTerms.DeliveryCents > 0 {
		deliveryTTL := time.Until(cart.DeliveryWindow.To)
		if deliveryTTL < f.mandateTTL {
			deliveryTTL = f.mandateTTL
		}
		deliveryMandate, err := f.settlement.CreateMandate(ctx, domain.MandateCreateRequest{
			CartID:      cart.ID,
			PayerRef:    f.payerRef,
			AmountCents: cart.PaymentTerms.DeliveryCents,
			TTLSeconds:  int64(deliveryTTL / time.Second),
			Metadata:    map[string]string{"flow_id": result.FlowID, "portion": "delivery"},
		})
		if err != nil {
			return f.fail(ctx, result, "create_delivery_mandate", err)
		}
		result.DeliveryMandate = deliveryMandate
		f.step(result, "create_delivery_mandate", map[string]any{
			"mandate_id":   deliveryMandate.MandateID,
			"amount_cents": deliveryMandate.AmountCents,
			"expires_at":   deliveryMandate.ExpiresAt,
		})
	}

	status, err := f.waiter.Wait(ctx, payment.PaymentID)
	if status != nil {
		result.InitialPayment = status
	}
	if err != nil {
		return f.fail(ctx, result, "await_settlement", err)
	}
	f.step(result, "await_settlement", map[string]any{"payment_id": status.PaymentID, "status": status.Status})

	result.Success = true
	f.publish(ctx, notify.EventPaymentConfirmation, map[string]any{
		"flow_id":         result.FlowID,
		"payment_id":      status.PaymentID,
		"amount_cents":    status.AmountCents,
		"vendor_id":       cart.VendorID,
		"delivery_window": cart.DeliveryWindow,
	})
	f.auditor.Record(result.FlowID, "flow_completed", map[string]any{"payment_id": status.PaymentID}, "info")
	logger.Info().Str("flow_id", result.FlowID).Str("payment_id", status.PaymentID).Msg("purchase flow completed")

	return result
}

func (f *Flow) vendorForBest(comparison *domain.QuoteComparison) *VendorClient {
	vendors := f.comparator.Vendors()
	for i, res := range comparison.Results {
		if res.Quote != nil && res.Quote.ID == comparison.Best.ID && i < len(vendors) {
			return vendors[i]
		}
	}
	return nil
}

// mergePreferences folds individual preferences into one vendor filter: the
// dietary tag union and the strictest positive per-item budget.
func mergePreferences(preferences []domain.Preference) domain.Preference {
	merged := domain.Preference{Name: "team"}
	seen := make(map[string]bool)
	for _, pref := range preferences {
		for _, tag := range pref.DietaryTags {
			if !seen[tag] {
				seen[tag] = true
				merged.DietaryTags = append(merged.DietaryTags, tag)
			}
		}
		if pref.BudgetCents > 0 && (merged.BudgetCents == 0 || pref.BudgetCents < merged.BudgetCents) {
			merged.BudgetCents = pref.BudgetCents
		}
	}
	return merged
}
