package usage

import (
	"math"
	"testing"
)

var testPrices = PriceTable{
	"claude-3-5-sonnet": {Input: 3, Output: 15},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAccumulateSingleEntry(t *testing.T) {
	got := Accumulate([]Entry{
		{Model: "claude-3-5-sonnet", InputTokens: 1000, OutputTokens: 500},
	}, testPrices)

	if got.InputTokens != 1000 || got.OutputTokens != 500 {
		t.Errorf("unexpected token totals: %+v", got)
	}
	if !almostEqual(got.CostUSD, 0.0105) {
		t.Errorf("expected cost 0.0105, got %v", got.CostUSD)
	}
}

func TestAccumulateMultipleModels(t *testing.T) {
	got := Accumulate([]Entry{
		{Model: "claude-3-5-sonnet", InputTokens: 2000, OutputTokens: 1000},
		{Model: "gpt-4o-mini", InputTokens: 10000, OutputTokens: 4000},
	}, testPrices)

	if got.InputTokens != 12000 || got.OutputTokens != 5000 {
		t.Errorf("unexpected token totals: %+v", got)
	}
	want := 2000.0/1e6*3 + 1000.0/1e6*15 + 10000.0/1e6*0.15 + 4000.0/1e6*0.6
	if !almostEqual(got.CostUSD, want) {
		t.Errorf("expected cost %v, got %v", want, got.CostUSD)
	}
}

func TestAccumulateSkipsUnknownModel(t *testing.T) {
	got := Accumulate([]Entry{
		{Model: "claude-3-5-sonnet", InputTokens: 1000, OutputTokens: 500},
		{Model: "mystery-model", InputTokens: 999999, OutputTokens: 999999},
	}, testPrices)

	// Unknown models contribute neither tokens nor cost.
	if got.InputTokens != 1000 || got.OutputTokens != 500 {
		t.Errorf("unknown model leaked into token totals: %+v", got)
	}
	if !almostEqual(got.CostUSD, 0.0105) {
		t.Errorf("unknown model leaked into cost: %v", got.CostUSD)
	}
}

func TestAccumulateEmpty(t *testing.T) {
	got := Accumulate(nil, testPrices)
	if got.InputTokens != 0 || got.OutputTokens != 0 || got.CostUSD != 0 {
		t.Errorf("expected zero totals, got %+v", got)
	}
}

// Accumulating over any partition of the entry list must equal accumulating
// over the flattened list.
func TestAccumulatePartitionInvariant(t *testing.T) {
	entries := []Entry{
		{Model: "claude-3-5-sonnet", InputTokens: 123, OutputTokens: 456},
		{Model: "gpt-4o-mini", InputTokens: 789, OutputTokens: 12},
		{Model: "unknown", InputTokens: 345, OutputTokens: 678},
		{Model: "claude-3-5-sonnet", InputTokens: 901, OutputTokens: 234},
	}

	whole := Accumulate(entries, testPrices)

	for split := 0; split <= len(entries); split++ {
		left := Accumulate(entries[:split], testPrices)
		right := Accumulate(entries[split:], testPrices)
		sum := left.Add(right)
		if sum.InputTokens != whole.InputTokens || sum.OutputTokens != whole.OutputTokens {
			t.Errorf("split %d: token totals differ: %+v vs %+v", split, sum, whole)
		}
		if !almostEqual(sum.CostUSD, whole.CostUSD) {
			t.Errorf("split %d: cost differs: %v vs %v", split, sum.CostUSD, whole.CostUSD)
		}
	}
}
