// Package usage computes token and cost totals for pipeline runs.
package usage

// Entry records the token usage of a single model call.
type Entry struct {
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// ModelPrice holds per-million-token USD prices for one model.
type ModelPrice struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

// PriceTable maps model names to their prices.
type PriceTable map[string]ModelPrice

// Totals is the accumulated usage across a set of entries.
type Totals struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Accumulate sums tokens and cost over entries using the given price table.
// Entries whose model is not in the table are skipped entirely: neither their
// tokens nor their cost contribute to the totals.
func Accumulate(entries []Entry, prices PriceTable) Totals {
	var t Totals
	for _, e := range entries {
		price, ok := prices[e.Model]
		if !ok {
			continue
		}
		t.InputTokens += e.InputTokens
		t.OutputTokens += e.OutputTokens
		t.CostUSD += float64(e.InputTokens)/1_000_000*price.Input +
			float64(e.OutputTokens)/1_000_000*price.Output
	}
	return t
}

// Add combines two totals.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		InputTokens:  t.InputTokens + other.InputTokens,
		OutputTokens: t.OutputTokens + other.OutputTokens,
		CostUSD:      t.CostUSD + other.CostUSD,
	}
}
