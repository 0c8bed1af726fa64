package usage

import "strings"

// Pricing is cost per million tokens, in USD, for one model tier.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
	CachedPerMillion float64
}

// fallbackPricing is used when no entry in pricingTable matches a model
// name (§4.M: "(3.0, 15.0, 0.3) fallback").
var fallbackPricing = Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0, CachedPerMillion: 0.3}

// pricingTable is a static substring lookup: a model id is priced by the
// longest table key that appears as a substring of it, so
// "gpt-4o-mini-2024-07-18" matches "gpt-4o-mini" rather than the shorter
// "gpt-4o".
var pricingTable = map[string]Pricing{
	"claude-opus-4":     {InputPerMillion: 15.0, OutputPerMillion: 75.0, CachedPerMillion: 1.5},
	"claude-sonnet-4":   {InputPerMillion: 3.0, OutputPerMillion: 15.0, CachedPerMillion: 0.3},
	"claude-haiku":      {InputPerMillion: 0.8, OutputPerMillion: 4.0, CachedPerMillion: 0.08},
	"gpt-4o":            {InputPerMillion: 2.5, OutputPerMillion: 10.0, CachedPerMillion: 1.25},
	"gpt-4o-mini":       {InputPerMillion: 0.15, OutputPerMillion: 0.6, CachedPerMillion: 0.075},
	"gemini-2.0-flash":  {InputPerMillion: 0.1, OutputPerMillion: 0.4, CachedPerMillion: 0.025},
	"gemini-1.5-pro":    {InputPerMillion: 1.25, OutputPerMillion: 5.0, CachedPerMillion: 0.3125},
}

// PriceForModel resolves pricing for model via longest-substring match,
// falling back to fallbackPricing (§4.M).
func PriceForModel(model string) Pricing {
	best := ""
	bestPricing := fallbackPricing
	found := false
	for key, p := range pricingTable {
		if strings.Contains(model, key) && len(key) > len(best) {
			best = key
			bestPricing = p
			found = true
		}
	}
	if !found {
		return fallbackPricing
	}
	return bestPricing
}

// Cost computes USD cost for a token breakdown under p.
func (p Pricing) Cost(inputTokens, outputTokens, cachedTokens int) float64 {
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion +
		float64(cachedTokens)/1_000_000*p.CachedPerMillion
}
