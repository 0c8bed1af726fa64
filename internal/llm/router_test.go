package llm

import (
	"context"
	"testing"

	"github.com/agentgraph/orchestrator/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	reply string
}

func (f *fakeProvider) Name() string          { return f.name }
func (f *fakeProvider) SupportsTools() bool   { return false }
func (f *fakeProvider) Models() []Model       { return nil }
func (f *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 2)
	ch <- &CompletionChunk{Text: f.reply}
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func TestRouterDispatchesByTier(t *testing.T) {
	flash := &fakeProvider{name: "flash-fake", reply: "flash reply"}
	pro := &fakeProvider{name: "pro-fake", reply: "pro reply"}
	r := NewRouter(map[Tier]Provider{TierFlash: flash, TierPro: pro})

	chunks, err := r.Complete(context.Background(), TierPro, &CompletionRequest{})
	require.NoError(t, err)
	text, err := CollectText(chunks)
	require.NoError(t, err)
	assert.Equal(t, "pro reply", text)
}

func TestRouterErrorsOnUnregisteredTier(t *testing.T) {
	r := NewRouter(map[Tier]Provider{})
	_, err := r.Complete(context.Background(), TierMax, &CompletionRequest{})
	assert.Error(t, err)
}

func TestCollectTextStopsAtError(t *testing.T) {
	ch := make(chan *CompletionChunk, 2)
	ch <- &CompletionChunk{Text: "partial"}
	ch <- &CompletionChunk{Error: assertAnError}
	close(ch)

	text, err := CollectText(ch)
	assert.Equal(t, "partial", text)
	assert.Error(t, err)
}

var assertAnError = &sentinelErr{"boom"}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }

func TestFlashSummarizerUsesFlashTier(t *testing.T) {
	flash := &fakeProvider{name: "flash-fake", reply: "the summary"}
	r := NewRouter(map[Tier]Provider{TierFlash: flash})
	summarizer := &FlashSummarizer{Router: r}

	out, err := summarizer.Summarize(context.Background(), []memory.Message{
		{Role: memory.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the summary", out)
}
