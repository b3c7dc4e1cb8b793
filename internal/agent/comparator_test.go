package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"snackpay/backend/internal/domain"
)

// stubVendor serves a one-item catalog and quotes a fixed total.
func stubVendor(t *testing.T, vendorID string, totalCents int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.CatalogQueryResponse{
			VendorID: vendorID,
			Items: []domain.CatalogItem{
				{SKU: vendorID + "-SKU", Name: "Snack", PriceCents: 100, Category: "savory", VendorID: vendorID},
			},
		})
	})
	mux.HandleFunc("/quote/create", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Quote{
			ID:         "quote-" + vendorID,
			VendorID:   vendorID,
			TotalCents: totalCents,
		})
	})
	return httptest.NewServer(mux)
}

func TestCompareSelectsCheapestAndReportsSavings(t *testing.T) {
	expensive := stubVendor(t, "vendor-a", 10000)
	defer expensive.Close()
	cheap := stubVendor(t, "vendor-b", 8000)
	defer cheap.Close()

	comparator := NewComparator([]*VendorClient{
		NewVendorClient("vendor-a", expensive.URL),
		NewVendorClient("vendor-b", cheap.URL),
	})

	comparison, err := comparator.Compare(context.Background(), domain.Preference{}, 4)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if comparison.Best == nil || comparison.Best.VendorID != "vendor-b" {
		t.Fatalf("expected vendor-b to win, got %+v", comparison.Best)
	}
	if comparison.SavingsCents != 2000 {
		t.Fatalf("expected savings 2000, got %d", comparison.SavingsCents)
	}
	if comparison.PercentageSaved != 20 {
		t.Fatalf("expected 20%% saved, got %v", comparison.PercentageSaved)
	}
}

func TestCompareSurvivesOneVendorDown(t *testing.T) {
	healthy := stubVendor(t, "vendor-a", 9000)
	defer healthy.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer dead.Close()

	comparator := NewComparator([]*VendorClient{
		NewVendorClient("vendor-a", healthy.URL),
		NewVendorClient("vendor-dead", dead.URL),
	})

	comparison, err := comparator.Compare(context.Background(), domain.Preference{}, 4)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if comparison.Best == nil || comparison.Best.VendorID != "vendor-a" {
		t.Fatalf("expected the healthy vendor to win")
	}

	var failed *domain.VendorQuoteResult
	for i := range comparison.Results {
		if comparison.Results[i].Quote == nil {
			failed = &comparison.Results[i]
		}
	}
	if failed == nil || failed.Error == "" {
		t.Fatalf("expected the dead vendor annotated with its error")
	}
	// Single winner means no savings against anyone.
	if comparison.SavingsCents != 0 || comparison.PercentageSaved != 0 {
		t.Fatalf("single valid quote must report zero savings")
	}
}

func TestCompareAllVendorsDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer dead.Close()

	comparator := NewComparator([]*VendorClient{
		NewVendorClient("vendor-dead", dead.URL),
	})

	_, err := comparator.Compare(context.Background(), domain.Preference{}, 4)
	if !errors.Is(err, ErrNoQuotesAvailable) {
		t.Fatalf("expected ErrNoQuotesAvailable, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	requests := 0
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer dead.Close()

	client := NewVendorClient("vendor-dead", dead.URL)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = client.QueryCatalog(ctx, domain.CatalogQueryRequest{})
	}
	// The breaker trips at three consecutive failures; later calls are
	// short-circuited without reaching the server.
	if requests != 3 {
		t.Fatalf("expected breaker to stop requests after 3 failures, server saw %d", requests)
	}
}
