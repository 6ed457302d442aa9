package domain

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sonnetPricing(t *testing.T) *ModelPricing {
	t.Helper()
	table, err := NewPricingTable("")
	if err != nil {
		t.Fatalf("NewPricingTable failed: %v", err)
	}
	return table.Lookup("claude-sonnet-4-5-20250929")
}

func TestCalculateBreakdown_StandardTier(t *testing.T) {
	p := sonnetPricing(t)

	b := p.CalculateBreakdown(1_000_000, 1_000_000, 0, 0)

	assertFloat(t, "input cost", 3.0, b.Input)
	assertFloat(t, "output cost", 15.0, b.Output)
	assertFloat(t, "total cost", 18.0, b.Total)
}

func TestCalculateBreakdown_ThresholdBoundary(t *testing.T) {
	p := sonnetPricing(t)

	// Exactly at the threshold stays on standard rates.
	atThreshold := p.CalculateBreakdown(200_000, 1000, 0, 0)
	assertFloat(t, "at-threshold input", 0.2*3.0, atThreshold.Input)

	// One token over switches the whole tuple to extended rates.
	over := p.CalculateBreakdown(200_001, 1000, 0, 0)
	assertFloat(t, "over-threshold input", 200_001*6.0/1_000_000, over.Input)
	assertFloat(t, "over-threshold output", 1000*22.50/1_000_000, over.Output)

	if over.Total <= atThreshold.Total {
		t.Error("extended tier must cost strictly more per token than standard tier")
	}
}

func TestCalculateBreakdown_CacheTokensCountTowardThreshold(t *testing.T) {
	p := sonnetPricing(t)

	// input + cacheRead + cacheWrite = 250k > 200k even though raw input is small
	b := p.CalculateBreakdown(10_000, 0, 200_000, 40_000)

	assertFloat(t, "input at long-context rate", 10_000*6.0/1_000_000, b.Input)
	assertFloat(t, "cache read at 0.1x long-context input", 200_000*0.6/1_000_000, b.CacheRead)
	assertFloat(t, "cache write at 1.25x long-context input", 40_000*7.5/1_000_000, b.CacheWrite)
}

func TestCalculateBreakdown_NoLongContextTier(t *testing.T) {
	table, _ := NewPricingTable("")
	p := table.Lookup("claude-opus-4-6-20260206")

	// Opus has no extended tier: huge inputs still bill at base rates.
	b := p.CalculateBreakdown(500_000, 0, 0, 0)
	assertFloat(t, "input cost", 500_000*15.0/1_000_000, b.Input)
}

func TestPricingTable_Lookup(t *testing.T) {
	table, err := NewPricingTable("")
	if err != nil {
		t.Fatalf("NewPricingTable failed: %v", err)
	}

	assertEqual(t, "alias resolution", "claude-opus-4-6-20260206", table.Lookup("opus").ID)
	assertEqual(t, "exact id", "claude-haiku-4-5-20251001", table.Lookup("claude-haiku-4-5-20251001").ID)
	assertEqual(t, "date drift prefix match", "claude-sonnet-4-5-20250929", table.Lookup("claude-sonnet-4-5-20251120").ID)
	assertEqual(t, "unknown model falls back to default", true, table.Lookup("gpt-9").IsDefault)
	assertEqual(t, "empty model falls back to default", true, table.Lookup("").IsDefault)
}

func TestPricingTable_TOMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.toml")
	contents := `
[[model]]
id = "custom-model"
display_name = "Custom"
input_per_million = 1.0
output_per_million = 2.0
default = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write pricing file: %v", err)
	}

	table, err := NewPricingTable(path)
	if err != nil {
		t.Fatalf("NewPricingTable failed: %v", err)
	}

	p := table.Lookup("custom-model")
	assertEqual(t, "overridden id", "custom-model", p.ID)
	assertFloat(t, "overridden input rate", 1.0, p.InputPerMillion)
}

func TestPricingTable_MissingOverrideFileIsIgnored(t *testing.T) {
	table, err := NewPricingTable(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing override file should not fail: %v", err)
	}
	if table.Default() == nil {
		t.Fatal("expected built-in default pricing")
	}
}

func assertFloat(t *testing.T, name string, expected, actual float64) {
	t.Helper()
	if math.Abs(expected-actual) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, expected, actual)
	}
}
