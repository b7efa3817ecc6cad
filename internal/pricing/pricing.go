// Package pricing estimates the USD cost of provider calls from token
// counts. Estimates feed usage metrics only; they never gate a request.
package pricing

import "strings"

// ModelPrice is the USD price per 1000 tokens for a model. A trailing "*"
// in Model matches by prefix.
type ModelPrice struct {
	Provider        string
	Model           string
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// DefaultPrices covers the models the orchestrator routes to.
var DefaultPrices = []ModelPrice{
	{Provider: "gemini", Model: "gemini-2.0-flash*", InputCostPer1K: 0.0001, OutputCostPer1K: 0.0004},
	{Provider: "gemini", Model: "gemini-1.5-flash*", InputCostPer1K: 0.000075, OutputCostPer1K: 0.0003},
	{Provider: "gemini", Model: "gemini-1.5-pro*", InputCostPer1K: 0.00125, OutputCostPer1K: 0.005},
	{Provider: "openai", Model: "gpt-4o-mini", InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006},
	{Provider: "openai", Model: "gpt-4o*", InputCostPer1K: 0.005, OutputCostPer1K: 0.015},
}

// Table resolves prices by provider and model.
type Table struct {
	prices []ModelPrice
}

// NewTable builds a pricing table. A nil price list uses DefaultPrices.
func NewTable(prices []ModelPrice) *Table {
	if prices == nil {
		prices = DefaultPrices
	}
	return &Table{prices: prices}
}

// Estimate returns the estimated USD cost for a call. Unknown models cost 0
// rather than failing the metrics path.
func (t *Table) Estimate(provider, model string, inputTokens, outputTokens int) float64 {
	p, ok := t.find(provider, model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000.0*p.InputCostPer1K +
		float64(outputTokens)/1000.0*p.OutputCostPer1K
}

// find matches exact model names first, then the longest wildcard prefix.
func (t *Table) find(provider, model string) (ModelPrice, bool) {
	model = strings.ToLower(model)
	var best ModelPrice
	bestLen := -1
	for _, p := range t.prices {
		if p.Provider != provider {
			continue
		}
		if strings.EqualFold(p.Model, model) {
			return p, true
		}
		if strings.HasSuffix(p.Model, "*") {
			prefix := strings.ToLower(strings.TrimSuffix(p.Model, "*"))
			if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
				best = p
				bestLen = len(prefix)
			}
		}
	}
	return best, bestLen >= 0
}
