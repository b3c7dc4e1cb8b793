package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceLoadsPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	payload := `[{"name":"erin","dietary_tags":["vegan"],"budget_cents":900}]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	preferences, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(preferences) != 1 || preferences[0].Name != "erin" || preferences[0].BudgetCents != 900 {
		t.Fatalf("unexpected preferences: %+v", preferences)
	}
}

func TestFileSourceMissingFileErrors(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}.Load(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultsAreNonEmpty(t *testing.T) {
	defaults := Defaults()
	if len(defaults) == 0 {
		t.Fatalf("defaults must supply at least one preference")
	}
	for _, pref := range defaults {
		if pref.BudgetCents <= 0 {
			t.Fatalf("default preference %s has no budget", pref.Name)
		}
	}
}
