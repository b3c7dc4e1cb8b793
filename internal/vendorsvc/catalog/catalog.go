package catalog

import (
	"fmt"
	"strings"
	"time"

	"snackpay/backend/internal/domain"
)

// Profile carries every vendor-defined pricing and scheduling knob. Quote,
// negotiation and cart behavior all read from here so a vendor process is
// fully described by its profile plus its catalog.
type Profile struct {
	VendorID string
	Name     string

	// Volume discount: totals above the threshold are scaled by
	// RetainPercent/100 and floored to whole cents. Applied once.
	DiscountThresholdCents int64
	RetainPercent          int64

	// Largest counter-offer discount the vendor tolerates, as a fraction
	// of the current total.
	MaxDiscount float64

	QuoteValidity time.Duration
	LockDuration  time.Duration

	// Delivery windows land on the next day inside these local hours.
	DeliveryFromHour int
	DeliveryToHour   int

	// Split payment: initial percent of the total due up front. Zero means
	// the vendor takes full payment in one mandate.
	InitialPercent int64
}

func (p Profile) SupportsSplit() bool {
	return p.InitialPercent > 0
}

func Standard() Profile {
	return Profile{
		VendorID:               "vendor-standard",
		Name:                   "Standard Snacks Co",
		DiscountThresholdCents: 50000,
		RetainPercent:          90,
		MaxDiscount:            0.15,
		QuoteValidity:          2 * time.Hour,
		LockDuration:           15 * time.Minute,
		DeliveryFromHour:       10,
		DeliveryToHour:         12,
		InitialPercent:         0,
	}
}

func Premium() Profile {
	return Profile{
		VendorID:               "vendor-premium",
		Name:                   "Premium Pantry",
		DiscountThresholdCents: 40000,
		RetainPercent:          85,
		MaxDiscount:            0.08,
		QuoteValidity:          3 * time.Hour,
		LockDuration:           20 * time.Minute,
		DeliveryFromHour:       9,
		DeliveryToHour:         11,
		InitialPercent:         30,
	}
}

func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return Standard(), nil
	case "premium":
		return Premium(), nil
	default:
		return Profile{}, fmt.Errorf("unknown vendor profile %q", name)
	}
}

// Store is the vendor's read-only catalog. Items never change after New, so
// it is safe to share across handlers without locking.
type Store struct {
	profile Profile
	items   []domain.CatalogItem
	bySKU   map[string]domain.CatalogItem
}

func New(profile Profile) *Store {
	items := seedItems(profile)
	bySKU := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		bySKU[item.SKU] = item
	}
	return &Store{profile: profile, items: items, bySKU: bySKU}
}

func (s *Store) Profile() Profile {
	return s.profile
}

func (s *Store) Get(sku string) (domain.CatalogItem, bool) {
	item, ok := s.bySKU[sku]
	return item, ok
}

// Query filters the catalog. Every clause in the request is conjunctive: a
// returned item matches the category set, fits the budget, and shares at
// least one dietary tag when tags are supplied.
func (s *Store) Query(req domain.CatalogQueryRequest) []domain.CatalogItem {
	matched := make([]domain.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		if len(req.Categories) > 0 && !containsFold(req.Categories, item.Category) {
			continue
		}
		if req.MaxBudgetCents > 0 && item.PriceCents > req.MaxBudgetCents {
			continue
		}
		if len(req.Dietary) > 0 && !sharesTag(req.Dietary, item.DietaryTags) {
			continue
		}
		matched = append(matched, item)
	}
	return matched
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}

func sharesTag(wanted []string, tags []string) bool {
	for _, want := range wanted {
		if containsFold(tags, want) {
			return true
		}
	}
	return false
}

func seedItems(profile Profile) []domain.CatalogItem {
	vendorID := profile.VendorID
	if vendorID == Premium().VendorID {
		return []domain.CatalogItem{
			{SKU: "PRM-TRAIL-01", Name: "Artisan Trail Mix", PriceCents: 1250, Category: "nuts", DietaryTags: []string{"vegan", "gluten_free"}, MinQuantity: 10, VendorID: vendorID},
			{SKU: "PRM-CHOC-01", Name: "Single-Origin Dark Chocolate", PriceCents: 950, Category: "sweets", DietaryTags: []string{"vegetarian", "gluten_free"}, VendorID: vendorID},
			{SKU: "PRM-JERKY-01", Name: "Grass-Fed Beef Jerky", PriceCents: 1800, Category: "protein", DietaryTags: []string{"gluten_free"}, MinQuantity: 5, VendorID: vendorID},
			{SKU: "PRM-KOMB-01", Name: "Ginger Kombucha", PriceCents: 1100, Category: "drinks", DietaryTags: []string{"vegan", "gluten_free"}, MinQuantity: 12, VendorID: vendorID},
			{SKU: "PRM-BAR-01", Name: "Cold-Pressed Fruit Bar", PriceCents: 850, Category: "bars", DietaryTags: []string{"vegan", "nut_free"}, VendorID: vendorID},
			{SKU: "PRM-CHEESE-01", Name: "Aged Cheddar Crisps", PriceCents: 1400, Category: "savory", DietaryTags: []string{"vegetarian", "gluten_free"}, MinQuantity: 8, VendorID: vendorID},
			{SKU: "PRM-POPC-01", Name: "Truffle Popcorn", PriceCents: 1200, Category: "savory", DietaryTags: []string{"vegetarian", "gluten_free", "nut_free"}, VendorID: vendorID},
			{SKU: "PRM-MATCHA-01", Name: "Matcha Wafer Bites", PriceCents: 1050, Category: "sweets", DietaryTags: []string{"vegetarian"}, MinQuantity: 6, VendorID: vendorID},
		}
	}
	return []domain.CatalogItem{
		{SKU: "STD-CHIPS-01", Name: "Sea Salt Potato Chips", PriceCents: 450, Category: "savory", DietaryTags: []string{"vegan", "gluten_free", "nut_free"}, MinQuantity: 20, VendorID: vendorID},
		{SKU: "STD-PRETZ-01", Name: "Honey Mustard Pretzels", PriceCents: 400, Category: "savory", DietaryTags: []string{"vegetarian", "nut_free"}, MinQuantity: 20, VendorID: vendorID},
		{SKU: "STD-COOKIE-01", Name: "Oatmeal Raisin Cookies", PriceCents: 550, Category: "sweets", DietaryTags: []string{"vegetarian"}, MinQuantity: 12, VendorID: vendorID},
		{SKU: "STD-GRAN-01", Name: "Granola Bar Variety Pack", PriceCents: 600, Category: "bars", DietaryTags: []string{"vegetarian"}, MinQuantity: 15, VendorID: vendorID},
		{SKU: "STD-FRUIT-01", Name: "Dried Fruit Medley", PriceCents: 700, Category: "fruit", DietaryTags: []string{"vegan", "gluten_free", "nut_free"}, VendorID: vendorID},
		{SKU: "STD-SODA-01", Name: "Sparkling Water 12-Pack", PriceCents: 500, Category: "drinks", DietaryTags: []string{"vegan", "gluten_free", "nut_free"}, MinQuantity: 4, VendorID: vendorID},
		{SKU: "STD-NUTS-01", Name: "Roasted Salted Almonds", PriceCents: 800, Category: "nuts", DietaryTags: []string{"vegan", "gluten_free"}, MinQuantity: 10, VendorID: vendorID},
		{SKU: "STD-CRACK-01", Name: "Whole Wheat Crackers", PriceCents: 350, Category: "savory", DietaryTags: []string{"vegetarian", "nut_free"}, VendorID: vendorID},
	}
}
