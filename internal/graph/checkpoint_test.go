package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckpointStoreSaveAndLoad(t *testing.T) {
	store := NewMemoryCheckpointStore()
	state := NewRunState("thread-1", "hello", "")
	state.Result = "partial"

	require.NoError(t, store.Save(context.Background(), "thread-1", state))

	loaded, err := store.Load(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "partial", loaded.Result)

	// mutating the loaded copy must not affect the stored checkpoint
	loaded.Result = "mutated"
	reloaded, err := store.Load(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "partial", reloaded.Result)
}

func TestMemoryCheckpointStoreLoadMissingErrors(t *testing.T) {
	store := NewMemoryCheckpointStore()
	_, err := store.Load(context.Background(), "no-such-thread")
	assert.Error(t, err)
}
