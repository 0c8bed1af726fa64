package events

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolResultTruncation(t *testing.T) {
	exact := strings.Repeat("a", MaxToolResultContentLength)
	e := ToolResult("search", "1", exact)
	assert.Equal(t, exact, e.Content, "content exactly at the limit must not be truncated")

	over := exact + "b"
	e = ToolResult("search", "1", over)
	assert.Len(t, e.Content, MaxToolResultContentLength, "content one byte over must be truncated")
}

func TestBusOrdersAndReplays(t *testing.T) {
	b := NewBus(8)
	defer b.Close()

	b.Emit(Stage("react", "", StageRunning))
	b.Emit(Token("hi"))
	b.Emit(Complete())

	got := b.Replay()
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, int64(3), got[2].Seq)
	assert.Equal(t, TypeComplete, got[2].Type)
}

func TestLineFormatsSSE(t *testing.T) {
	line, err := Line(Complete())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.True(t, strings.HasSuffix(line, "\n\n"))
}
