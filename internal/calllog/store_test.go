package calllog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecordAndList(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "audit", "calllog.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := 40 * time.Millisecond

	require.NoError(t, store.Record(ctx, Entry{
		ID: "a", SessionID: "s1", Title: "click", Status: StatusDone, Kind: KindCommand,
		Params: Params{Selector: "#submit"}, Duration: &d, CreatedAt: base,
	}))
	require.NoError(t, store.Record(ctx, Entry{
		ID: "b", SessionID: "s1", Title: "extract innerText", Status: StatusError, Kind: KindCommand,
		Error: "timeout", Duration: &d, CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, store.Record(ctx, Entry{
		ID: "c", SessionID: "s2", Title: "extract count", Status: StatusDone, Kind: KindCommand,
		Messages: []string{"3"}, Duration: &d, CreatedAt: base.Add(2 * time.Second),
	}))

	all, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")
	assert.Equal(t, []string{"3"}, all[0].Messages)

	s1, err := store.List(ctx, Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, s1, 2)

	failed, err := store.List(ctx, Query{Status: StatusError})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "timeout", failed[0].Error)
	assert.Equal(t, 40*time.Millisecond, *failed[0].Duration)

	limited, err := store.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreRejectsInProgress(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.Record(context.Background(), Entry{ID: "x", Status: StatusInProgress})
	assert.Error(t, err)
}

func TestStoreWiredAsTerminalHook(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	l := New("s9", OnTerminal(func(e Entry) {
		require.NoError(t, store.Record(ctx, e))
	}))
	id := l.Create("click", Params{Selector: "#go"})
	l.Complete(id, StatusDone, "")

	got, err := store.List(ctx, Query{SessionID: "s9"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "#go", got[0].Params.Selector)
}
