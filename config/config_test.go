package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestConfig_DefaultIsValid tests that built-in defaults pass validation
func TestConfig_DefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

// TestConfig_ParseOverridesDefaults tests partial YAML merging over defaults
func TestConfig_ParseOverridesDefaults(t *testing.T) {
	yml := `
sim:
  name: test-world
  ticksPerMonth: 10
growth:
  weights:
    passengers: 10
routing:
  maxExpansions: 50
cities:
  - name: Aston
    x: 10
    y: 12
    radius: 3
    population: 400
`
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Sim.Name != "test-world" || cfg.Sim.TicksPerMonth != 10 {
		t.Errorf("sim section not applied: %+v", cfg.Sim)
	}
	if cfg.Growth.Weights.Passengers != 10 {
		t.Errorf("expected passenger weight 10, got %d", cfg.Growth.Weights.Passengers)
	}
	if cfg.Growth.Weights.Mail != Default().Growth.Weights.Mail {
		t.Errorf("unset weight should keep default, got %d", cfg.Growth.Weights.Mail)
	}
	if cfg.Routing.MaxExpansions != 50 {
		t.Errorf("expected 50 expansions, got %d", cfg.Routing.MaxExpansions)
	}
	if len(cfg.Cities) != 1 || cfg.Cities[0].Radius != 3 || cfg.Cities[0].Population != 400 {
		t.Errorf("cities section not applied: %+v", cfg.Cities)
	}
	if cfg.Ledger.RerouteInterval != 255 {
		t.Errorf("expected default reroute interval, got %d", cfg.Ledger.RerouteInterval)
	}
}

// TestConfig_ValidationFailures tests that struct tags reject bad values
func TestConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"zero expansions", "routing:\n  maxExpansions: 0\n"},
		{"dampening above 100", "growth:\n  congestionDampening: 150\n"},
		{"compute below return precision", "growth:\n  returnPrecision: 8\n  computePrecision: 4\n"},
		{"bad rule kind", "growth:\n  rules:\n    - kind: tower\n      chance: 1\n      pattern: [\"...\"]\n"},
		{"feed without name", "feeds:\n  - staticPath: a.zip\n"},
		{"feed bad url", "feeds:\n  - name: x\n    tripUpdatesURL: not a url\n"},
		{"empty sim name", "sim:\n  name: \"\"\n"},
		{"city without radius", "cities:\n  - name: Aston\n    x: 4\n    y: 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestConfig_InvalidYAML tests error handling for invalid YAML
func TestConfig_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("invalid: yaml: content: [[[")); err == nil {
		t.Error("invalid YAML should return error")
	}
}

// TestConfig_LoadFromFile tests loading from an explicit path and feed selection
func TestConfig_LoadFromFile(t *testing.T) {
	origConfig := Config
	defer func() { Config = origConfig }()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yml")
	yml := `
feeds:
  - name: metro
    staticPath: metro.zip
  - name: tram
    staticPath: tram.zip
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if err := LoadAppConfig(filepath.Join(tmpDir, "missing.yml"), path); err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}

	f, ok := SelectFeed("tram")
	if !ok || f.StaticPath != "tram.zip" {
		t.Errorf("expected tram feed, got %+v", f)
	}
	f, ok = SelectFeed("unknown")
	if !ok || f.Name != "metro" {
		t.Errorf("expected fallback to first feed, got %+v", f)
	}
}

// TestConfig_MissingFile tests error handling for missing config
func TestConfig_MissingFile(t *testing.T) {
	origConfig := Config
	defer func() { Config = origConfig }()

	if err := LoadAppConfig(filepath.Join(t.TempDir(), "none.yml")); err == nil {
		t.Error("loading non-existent config should return error")
	}
}
