package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/perpbot/core"
)

func TestBuntStore_SaveFetchUpdate(t *testing.T) {
	store, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	id, err := store.SavePosition(core.PositionRow{
		Symbol:     "BTC",
		Side:       core.SideLong,
		EntryPrice: 100,
		Size:       1,
		Status:     core.PositionOpen,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	open, err := store.FetchOpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "BTC", open[0].Symbol)

	closedRow := open[0]
	closedRow.Status = core.PositionClosed
	require.NoError(t, store.UpdatePosition(id, closedRow))

	open, err = store.FetchOpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestBuntStore_UpdateMissingFails(t *testing.T) {
	store, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.UpdatePosition("does-not-exist", core.PositionRow{Symbol: "ETH"})
	assert.Error(t, err)
}

func TestBuntStore_Log(t *testing.T) {
	store, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Log("info", "test message", map[string]any{"k": "v"}))
}
