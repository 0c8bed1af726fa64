package usage

import "github.com/agentgraph/orchestrator/internal/llm"

// Totals is the aggregate shape shared by the overall summary and each
// by_model/by_tier breakdown entry (§4.M).
type Totals struct {
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCachedTokens int
	TotalTokens       int
	TotalCostUSD      float64
	CallCount         int
}

func (t *Totals) add(r Record) {
	t.TotalInputTokens += r.InputTokens
	t.TotalOutputTokens += r.OutputTokens
	t.TotalCachedTokens += r.CachedTokens
	t.TotalTokens += r.InputTokens + r.OutputTokens
	t.TotalCostUSD += r.CostUSD
	t.CallCount++
}

// Summary is the result of get_usage_summary (§4.M).
type Summary struct {
	Totals
	ByModel map[string]*Totals
	ByTier  map[llm.Tier]*Totals
}

// GetUsageSummary filters Global's records by conversationID/userID
// (empty string means "don't filter on this dimension") and aggregates
// totals overall, by model, and by tier.
func GetUsageSummary(conversationID, userID string) Summary {
	return summarize(Global.All(), conversationID, userID)
}

func summarize(records []Record, conversationID, userID string) Summary {
	summary := Summary{ByModel: make(map[string]*Totals), ByTier: make(map[llm.Tier]*Totals)}

	for _, r := range records {
		if conversationID != "" && r.ConversationID != conversationID {
			continue
		}
		if userID != "" && r.UserID != userID {
			continue
		}

		summary.Totals.add(r)

		byModel, ok := summary.ByModel[r.Model]
		if !ok {
			byModel = &Totals{}
			summary.ByModel[r.Model] = byModel
		}
		byModel.add(r)

		byTier, ok := summary.ByTier[r.Tier]
		if !ok {
			byTier = &Totals{}
			summary.ByTier[r.Tier] = byTier
		}
		byTier.add(r)
	}

	return summary
}
