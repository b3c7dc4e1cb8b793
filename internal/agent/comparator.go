package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

var ErrNoQuotesAvailable = errors.New("no quotes available from any vendor")

// maxLineSelections bounds how many distinct catalog items go into one quote
// request.
const maxLineSelections = 3

// Comparator fans a quote request out to every vendor and picks the cheapest
// valid answer. One vendor failing only annotates that vendor's slot; the
// comparison aborts only when nobody quoted.
type Comparator struct {
	vendors []*VendorClient
}

func NewComparator(vendors []*VendorClient) *Comparator {
	return &Comparator{vendors: vendors}
}

func (c *Comparator) Vendors() []*VendorClient {
	return c.vendors
}

// Compare requests one quote per vendor concurrently. Each vendor's line
// items come from its own catalog, filtered by the preference, cheapest
// first, quantity = headcount. Results[i] corresponds to Vendors()[i].
func (c *Comparator) Compare(ctx context.Context, pref domain.Preference, headcount int) (*domain.QuoteComparison, error) {
	if headcount < 1 {
		headcount = 1
	}

	results := make([]domain.VendorQuoteResult, len(c.vendors))
	var wg sync.WaitGroup
	for i, vendor := range c.vendors {
		wg.Add(1)
		go func(i int, vendor *VendorClient) {
			defer wg.Done()
			results[i] = c.quoteOne(ctx, vendor, pref, headcount)
		}(i, vendor)
	}
	wg.Wait()

	comparison := &domain.QuoteComparison{Results: results}

	var maxTotal int64
	for i := range results {
		quote := results[i].Quote
		if quote == nil {
			continue
		}
		if comparison.Best == nil || quote.TotalCents < comparison.Best.TotalCents {
			comparison.Best = quote
		}
		if quote.TotalCents > maxTotal {
			maxTotal = quote.TotalCents
		}
	}
	if comparison.Best == nil {
		return nil, ErrNoQuotesAvailable
	}

	comparison.SavingsCents = maxTotal - comparison.Best.TotalCents
	if maxTotal > 0 && comparison.SavingsCents > 0 {
		comparison.PercentageSaved = float64(comparison.SavingsCents) / float64(maxTotal) * 100
	}

	logger.Info().
		Str("best_vendor", comparison.Best.VendorID).
		Int64("best_total_cents", comparison.Best.TotalCents).
		Int64("savings_cents", comparison.SavingsCents).
		Msg("quote comparison settled")

	return comparison, nil
}

func (c *Comparator) quoteOne(ctx context.Context, vendor *VendorClient, pref domain.Preference, headcount int) domain.VendorQuoteResult {
	catalog, err := vendor.QueryCatalog(ctx, domain.CatalogQueryRequest{
		Dietary:        pref.DietaryTags,
		MaxBudgetCents: pref.BudgetCents,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("vendor catalog query failed")
		return domain.VendorQuoteResult{Error: err.Error()}
	}
	if len(catalog.Items) == 0 {
		return domain.VendorQuoteResult{
			VendorID: catalog.VendorID,
			Error:    fmt.Sprintf("vendor %s has no items matching the preference", catalog.VendorID),
		}
	}

	items := make([]domain.CatalogItem, len(catalog.Items))
	copy(items, catalog.Items)
	sort.Slice(items, func(a, b int) bool { return items[a].PriceCents < items[b].PriceCents })
	if len(items) > maxLineSelections {
		items = items[:maxLineSelections]
	}

	lines := make([]domain.QuoteItemRequest, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.QuoteItemRequest{SKU: item.SKU, Quantity: headcount})
	}

	quote, err := vendor.CreateQuote(ctx, domain.QuoteCreateRequest{Items: lines, Headcount: headcount})
	if err != nil {
		logger.Warn().Err(err).Str("vendor_id", catalog.VendorID).Msg("vendor quote failed")
		return domain.VendorQuoteResult{VendorID: catalog.VendorID, Error: err.Error()}
	}

	return domain.VendorQuoteResult{VendorID: quote.VendorID, Quote: quote}
}
