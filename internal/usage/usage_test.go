package usage

import (
	"testing"

	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestPriceForModelMatchesLongestSubstring(t *testing.T) {
	p := PriceForModel("claude-sonnet-4-20250514")
	assert.Equal(t, 3.0, p.InputPerMillion)
}

func TestPriceForModelFallsBackWhenUnknown(t *testing.T) {
	p := PriceForModel("some-totally-unknown-model")
	assert.Equal(t, fallbackPricing, p)
}

func TestPricingCostComputation(t *testing.T) {
	p := Pricing{InputPerMillion: 2, OutputPerMillion: 4, CachedPerMillion: 1}
	cost := p.Cost(1_000_000, 500_000, 1_000_000)
	assert.InDelta(t, 2+2+1, cost, 0.0001)
}

func TestExtractTokensTriesAliasesInOrder(t *testing.T) {
	raw := map[string]any{
		"usage": map[string]any{
			"input_tokens":  float64(10),
			"output_tokens": float64(20),
		},
		"model": "claude-sonnet-4",
	}
	got := ExtractTokens(raw)
	assert.True(t, got.OK)
	assert.Equal(t, 10, got.InputTokens)
	assert.Equal(t, 20, got.OutputTokens)
	assert.Equal(t, "claude-sonnet-4", got.Model)
}

func TestExtractTokensPrefersTokenUsageOverUsage(t *testing.T) {
	raw := map[string]any{
		"token_usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 6},
		"usage":       map[string]any{"prompt_tokens": 999, "completion_tokens": 999},
	}
	got := ExtractTokens(raw)
	assert.Equal(t, 5, got.InputTokens)
	assert.Equal(t, 6, got.OutputTokens)
}

func TestExtractTokensReturnsNotOKOnEmptyEnvelope(t *testing.T) {
	got := ExtractTokens(map[string]any{})
	assert.False(t, got.OK)
}

func TestTrackerRecordAppendsToGlobalAndLocal(t *testing.T) {
	Global.Reset()
	defer Global.Reset()

	tr := NewTracker("conv-1", "user-1")
	rec := tr.Record("claude-sonnet-4-20250514", llm.TierPro, 1000, 500, 0)

	assert.Greater(t, rec.CostUSD, 0.0)
	assert.Len(t, tr.Records(), 1)
	assert.Len(t, Global.All(), 1)
}

func TestTrackerRecordRawSkipsWhenExtractionFails(t *testing.T) {
	Global.Reset()
	defer Global.Reset()

	tr := NewTracker("conv-1", "user-1")
	_, ok := tr.RecordRaw("fallback-model", llm.TierFlash, map[string]any{"unrelated": "x"})
	assert.False(t, ok)
	assert.Empty(t, tr.Records())
}

func TestGetUsageSummaryFiltersByConversationAndAggregatesByModelAndTier(t *testing.T) {
	Global.Reset()
	defer Global.Reset()

	a := NewTracker("conv-a", "user-1")
	b := NewTracker("conv-b", "user-2")
	a.Record("claude-sonnet-4-20250514", llm.TierPro, 100, 50, 0)
	a.Record("gemini-2.0-flash", llm.TierFlash, 200, 100, 0)
	b.Record("claude-sonnet-4-20250514", llm.TierPro, 300, 150, 0)

	summary := GetUsageSummary("conv-a", "")
	assert.Equal(t, 2, summary.CallCount)
	assert.Equal(t, 450, summary.TotalTokens)
	assert.Len(t, summary.ByModel, 2)
	assert.Len(t, summary.ByTier, 2)

	all := GetUsageSummary("", "")
	assert.Equal(t, 3, all.CallCount)
}
