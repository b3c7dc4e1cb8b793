package prefs

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"snackpay/backend/internal/domain"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Source yields the team's snack preferences. Implementations may fail;
// callers fall back to Defaults.
type Source interface {
	Load(ctx context.Context) ([]domain.Preference, error)
}

// Defaults is the fixed fallback list used when no preference source is
// configured or the configured one fails.
func Defaults() []domain.Preference {
	return []domain.Preference{
		{Name: "alice", DietaryTags: []string{"vegan"}, BudgetCents: 1500},
		{Name: "bob", DietaryTags: []string{"gluten_free"}, BudgetCents: 1200},
		{Name: "carol", BudgetCents: 1000},
		{Name: "dave", DietaryTags: []string{"nut_free"}, BudgetCents: 1200},
	}
}

// FileSource reads a JSON array of preferences from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]domain.Preference, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", s.Path).Msg("preference file unreadable, using defaults")
		return nil, err
	}
	var preferences []domain.Preference
	if err := json.Unmarshal(raw, &preferences); err != nil {
		logger.Warn().Err(err).Str("path", s.Path).Msg("preference file malformed, using defaults")
		return nil, err
	}
	return preferences, nil
}

// StaticSource serves a fixed list, mainly for tests and default wiring.
type StaticSource struct {
	Preferences []domain.Preference
}

func (s StaticSource) Load(ctx context.Context) ([]domain.Preference, error) {
	return s.Preferences, nil
}
