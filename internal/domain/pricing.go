package domain

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// LongContextThreshold is the total-input-token count above which
// extended-context rates apply.
const LongContextThreshold int64 = 200_000

type ModelPricing struct {
	ID                          string // e.g., "claude-sonnet-4-5-20250929"
	DisplayName                 string
	InputPerMillion             float64
	OutputPerMillion            float64
	CacheReadPerMillion         *float64
	CacheWritePerMillion        *float64
	LongContextInputPerMillion  *float64 // Premium pricing for >threshold input tokens
	LongContextOutputPerMillion *float64
	LongContextThreshold        *int64 // Input token threshold (default 200K)
	IsDefault                   bool
}

// CostBreakdown holds the per-category costs for one usage tuple.
type CostBreakdown struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
	Total      float64
}

// CalculateBreakdown prices a usage tuple. The long-context tier is selected
// on input + cacheRead + cacheWrite; cache rates scale with the active tier
// (read 0.1x input, write 1.25x input).
func (p *ModelPricing) CalculateBreakdown(input, output, cacheRead, cacheWrite int64) CostBreakdown {
	totalInputTokens := input + cacheRead + cacheWrite

	useLongContext := p.LongContextThreshold != nil &&
		p.LongContextInputPerMillion != nil &&
		p.LongContextOutputPerMillion != nil &&
		totalInputTokens > *p.LongContextThreshold

	var inputRate, outputRate float64
	if useLongContext {
		inputRate = *p.LongContextInputPerMillion
		outputRate = *p.LongContextOutputPerMillion
	} else {
		inputRate = p.InputPerMillion
		outputRate = p.OutputPerMillion
	}

	var b CostBreakdown
	b.Input = float64(input) * inputRate / 1_000_000
	b.Output = float64(output) * outputRate / 1_000_000

	if p.CacheReadPerMillion != nil {
		cacheReadRate := *p.CacheReadPerMillion
		if useLongContext {
			cacheReadRate = inputRate * 0.1
		}
		b.CacheRead = float64(cacheRead) * cacheReadRate / 1_000_000
	}
	if p.CacheWritePerMillion != nil {
		cacheWriteRate := *p.CacheWritePerMillion
		if useLongContext {
			cacheWriteRate = inputRate * 1.25
		}
		b.CacheWrite = float64(cacheWrite) * cacheWriteRate / 1_000_000
	}

	b.Total = b.Input + b.Output + b.CacheWrite + b.CacheRead
	return b
}

func (p *ModelPricing) CalculateCost(input, output, cacheRead, cacheWrite int64) float64 {
	return p.CalculateBreakdown(input, output, cacheRead, cacheWrite).Total
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// builtinPricing is the shipped rate table. Sonnet carries the extended
// 1M-context tier; Opus and Haiku bill one tier regardless of input size.
var builtinPricing = []*ModelPricing{
	{
		ID:                          "claude-sonnet-4-5-20250929",
		DisplayName:                 "Claude Sonnet 4.5",
		InputPerMillion:             3.0,
		OutputPerMillion:            15.0,
		CacheReadPerMillion:         f64(0.30),
		CacheWritePerMillion:        f64(3.75),
		LongContextInputPerMillion:  f64(6.0),
		LongContextOutputPerMillion: f64(22.50),
		LongContextThreshold:        i64(LongContextThreshold),
		IsDefault:                   true,
	},
	{
		ID:                   "claude-opus-4-6-20260206",
		DisplayName:          "Claude Opus 4.6",
		InputPerMillion:      15.0,
		OutputPerMillion:     75.0,
		CacheReadPerMillion:  f64(1.50),
		CacheWritePerMillion: f64(18.75),
	},
	{
		ID:                   "claude-haiku-4-5-20251001",
		DisplayName:          "Claude Haiku 4.5",
		InputPerMillion:      1.0,
		OutputPerMillion:     5.0,
		CacheReadPerMillion:  f64(0.10),
		CacheWritePerMillion: f64(1.25),
	},
}

// modelAliases maps short model aliases to full model IDs for pricing lookup.
var modelAliases = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
	"opus":   "claude-opus-4-6-20260206",
}

// ResolveModelAlias maps a short alias to a full model ID, passing full IDs
// through unchanged.
func ResolveModelAlias(alias string) string {
	if id, ok := modelAliases[alias]; ok {
		return id
	}
	return alias
}

// PricingTable resolves a model ID to its rates, falling back to the default
// model for unrecognized IDs.
type PricingTable struct {
	models []*ModelPricing
}

// NewPricingTable returns the built-in table, optionally overridden by a TOML
// file. A missing override file is not an error; an unreadable one is.
func NewPricingTable(overridePath string) (*PricingTable, error) {
	t := &PricingTable{models: builtinPricing}
	if overridePath == "" {
		return t, nil
	}

	if _, err := os.Stat(overridePath); os.IsNotExist(err) {
		return t, nil
	}

	overrides, err := loadPricingFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing overrides: %w", err)
	}
	if len(overrides) > 0 {
		t.models = overrides
	}
	return t, nil
}

// Lookup returns the pricing for model, resolving aliases and prefix-matching
// dated model IDs. Unknown models fall back to the default entry.
func (t *PricingTable) Lookup(model string) *ModelPricing {
	id := ResolveModelAlias(model)

	for _, p := range t.models {
		if p.ID == id {
			return p
		}
	}
	// Dated IDs drift; match on the undated prefix.
	for _, p := range t.models {
		if id != "" && strings.HasPrefix(p.ID, trimDateSuffix(id)) {
			return p
		}
	}
	return t.Default()
}

// Default returns the table's fallback entry.
func (t *PricingTable) Default() *ModelPricing {
	for _, p := range t.models {
		if p.IsDefault {
			return p
		}
	}
	return t.models[0]
}

// trimDateSuffix strips a trailing -YYYYMMDD qualifier from a model ID.
func trimDateSuffix(id string) string {
	if len(id) > 9 {
		suffix := id[len(id)-9:]
		if suffix[0] == '-' && allDigits(suffix[1:]) {
			return id[:len(id)-9]
		}
	}
	return id
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// pricingFile is the TOML override schema:
//
//	[[model]]
//	id = "claude-sonnet-4-5-20250929"
//	input_per_million = 3.0
//	output_per_million = 15.0
//	...
type pricingFile struct {
	Models []pricingFileModel `toml:"model"`
}

type pricingFileModel struct {
	ID                          string   `toml:"id"`
	DisplayName                 string   `toml:"display_name"`
	InputPerMillion             float64  `toml:"input_per_million"`
	OutputPerMillion            float64  `toml:"output_per_million"`
	CacheReadPerMillion         *float64 `toml:"cache_read_per_million"`
	CacheWritePerMillion        *float64 `toml:"cache_write_per_million"`
	LongContextInputPerMillion  *float64 `toml:"long_context_input_per_million"`
	LongContextOutputPerMillion *float64 `toml:"long_context_output_per_million"`
	LongContextThreshold        *int64   `toml:"long_context_threshold"`
	IsDefault                   bool     `toml:"default"`
}

func loadPricingFile(path string) ([]*ModelPricing, error) {
	var file pricingFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, err
	}

	models := make([]*ModelPricing, 0, len(file.Models))
	for _, m := range file.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("pricing override entry missing id")
		}
		models = append(models, &ModelPricing{
			ID:                          m.ID,
			DisplayName:                 m.DisplayName,
			InputPerMillion:             m.InputPerMillion,
			OutputPerMillion:            m.OutputPerMillion,
			CacheReadPerMillion:         m.CacheReadPerMillion,
			CacheWritePerMillion:        m.CacheWritePerMillion,
			LongContextInputPerMillion:  m.LongContextInputPerMillion,
			LongContextOutputPerMillion: m.LongContextOutputPerMillion,
			LongContextThreshold:        m.LongContextThreshold,
			IsDefault:                   m.IsDefault,
		})
	}
	return models, nil
}
