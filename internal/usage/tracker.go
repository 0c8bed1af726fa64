package usage

import (
	"sync"
	"time"

	"github.com/agentgraph/orchestrator/internal/llm"
)

// Record is one LLM invocation's accounted usage (§4.M).
type Record struct {
	ConversationID string
	UserID         string
	Model          string
	Tier           llm.Tier
	InputTokens    int
	OutputTokens   int
	CachedTokens   int
	CostUSD        float64
	Timestamp      time.Time
}

// Tracker attaches to one run and records every terminal LLM response it
// observes, in addition to appending to the process-wide Global tracker
// (§4.M: "appends it to both the per-tracker list and a process-wide
// mutex-guarded slice").
type Tracker struct {
	conversationID string
	userID         string

	mu      sync.Mutex
	records []Record
}

// NewTracker builds a per-run tracker scoped to a conversation/user.
func NewTracker(conversationID, userID string) *Tracker {
	return &Tracker{conversationID: conversationID, userID: userID}
}

// Record appends a usage record for one completed LLM call, computing
// cost from the static pricing table, and mirrors it into the global
// process-wide list.
func (t *Tracker) Record(model string, tier llm.Tier, inputTokens, outputTokens, cachedTokens int) Record {
	rec := Record{
		ConversationID: t.conversationID,
		UserID:         t.userID,
		Model:          model,
		Tier:           tier,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		CachedTokens:   cachedTokens,
		CostUSD:        PriceForModel(model).Cost(inputTokens, outputTokens, cachedTokens),
		Timestamp:      time.Now(),
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()

	Global.append(rec)
	return rec
}

// RecordChunk extracts usage from a terminal llm.CompletionChunk (the
// common, already-typed path every provider adapter in this module
// produces) and records it.
func (t *Tracker) RecordChunk(model string, tier llm.Tier, chunk *llm.CompletionChunk) Record {
	return t.Record(model, tier, chunk.InputTokens, chunk.OutputTokens, 0)
}

// RecordRaw extracts usage from an untyped provider response envelope
// (§4.M/§6's alias-tolerant path, for integrations outside this module's
// own llm.Provider adapters) and records it if extraction found anything.
func (t *Tracker) RecordRaw(fallbackModel string, tier llm.Tier, raw map[string]any) (Record, bool) {
	extracted := ExtractTokens(raw)
	if !extracted.OK {
		return Record{}, false
	}
	model := extracted.Model
	if model == "" {
		model = fallbackModel
	}
	return t.Record(model, tier, extracted.InputTokens, extracted.OutputTokens, extracted.CachedTokens), true
}

// Records returns a snapshot of this tracker's own records.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// registry is the process-wide mutex-guarded usage log every Tracker
// mirrors into (§5 Shared resources: "usage record list").
type registry struct {
	mu      sync.Mutex
	records []Record
}

// Global is the process-wide usage log.
var Global = &registry{}

func (r *registry) append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// All returns every record the process has accounted for so far.
func (r *registry) All() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Reset clears the global registry; intended for test isolation.
func (r *registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
