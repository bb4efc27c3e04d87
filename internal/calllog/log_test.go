package calllog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/action"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCreateThenCompleteDone(t *testing.T) {
	clock := newClock()
	changes := 0
	var terminal []Entry
	l := New("s1", WithClock(clock.Now), OnChange(func() { changes++ }), OnTerminal(func(e Entry) { terminal = append(terminal, e) }))

	id := l.Create("click", Params{Selector: "#submit", URL: "https://example.com"})
	e, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusInProgress, e.Status)
	assert.Nil(t, e.Duration, "duration absent while in progress")

	clock.Advance(120 * time.Millisecond)
	require.True(t, l.Complete(id, StatusDone, ""))

	e, _ = l.Get(id)
	assert.Equal(t, StatusDone, e.Status)
	require.NotNil(t, e.Duration)
	assert.Equal(t, 120*time.Millisecond, *e.Duration)
	assert.Equal(t, "#submit", e.Params.Selector)
	assert.Equal(t, 2, changes)
	require.Len(t, terminal, 1)
	assert.Equal(t, "s1", terminal[0].SessionID)
}

func TestCompleteExactlyOnce(t *testing.T) {
	l := New("s1")
	id := l.Create("extract innerText", Params{Selector: "#title"})

	require.True(t, l.Complete(id, StatusDone, "Hello"))
	assert.False(t, l.Complete(id, StatusError, "late failure"))
	assert.False(t, l.Complete("nope", StatusDone, ""))

	e, _ := l.Get(id)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, []string{"Hello"}, e.Messages)
	assert.Empty(t, e.Error)
}

func TestCompleteRejectsNonTerminalStatus(t *testing.T) {
	l := New("s1")
	id := l.Create("click", Params{})
	assert.False(t, l.Complete(id, StatusPaused, ""))
	assert.False(t, l.Complete(id, StatusInProgress, ""))
}

func TestCompleteErrorStoresMessage(t *testing.T) {
	l := New("s1")
	id := l.Create("click", Params{Selector: "#missing"})
	require.True(t, l.Complete(id, StatusError, "timeout 5s exceeded"))
	e, _ := l.Get(id)
	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "timeout 5s exceeded", e.Error)
	require.NotNil(t, e.Duration)
	assert.GreaterOrEqual(t, *e.Duration, time.Duration(0))
}

func TestNegativeClockSkewClampsDuration(t *testing.T) {
	clock := newClock()
	l := New("s1", WithClock(clock.Now))
	id := l.Create("click", Params{})
	clock.Advance(-time.Second)
	l.Complete(id, StatusDone, "")
	e, _ := l.Get(id)
	assert.Equal(t, time.Duration(0), *e.Duration)
}

func TestPauseResume(t *testing.T) {
	clock := newClock()
	l := New("s1", WithClock(clock.Now))
	id := l.Pause()
	e, _ := l.Get(id)
	assert.Equal(t, StatusPaused, e.Status)
	assert.Nil(t, e.Duration)

	clock.Advance(3 * time.Second)
	assert.True(t, l.Resume())
	assert.False(t, l.Resume())

	e, _ = l.Get(id)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, 3*time.Second, *e.Duration)
}

func TestSnapshotOrdersDerivedBeforeTemporary(t *testing.T) {
	l := New("s1")
	cmd := l.Create("click", Params{Selector: "#a"})
	l.Derive([]action.Record{
		{Action: action.Navigate{URL: "https://example.com"}},
		{Action: action.Fill{Base: action.Base{Selector: "#q"}, Text: "shoes"}},
	})

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "recorded-0", snap[0].ID)
	assert.Equal(t, "https://example.com", snap[0].Params.URL)
	assert.Equal(t, "#q", snap[1].Params.Selector)
	assert.Equal(t, cmd, snap[2].ID)

	l.Derive(nil)
	assert.Len(t, l.Snapshot(), 1, "derived batch is replaced wholesale")
}

func TestDeriveSkipsSyntheticRecords(t *testing.T) {
	entries := DeriveEntries([]action.Record{
		{Action: action.Click{Base: action.Base{Selector: "#submit"}}, Synthetic: true},
		{Action: action.Fill{Base: action.Base{Selector: "#q"}, Text: "shoes"}},
		{Action: action.Click{Base: action.Base{Selector: "#go"}}, Synthetic: true},
		{Action: action.Click{Base: action.Base{Selector: "#go"}}},
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "recorded-0", entries[0].ID)
	assert.Equal(t, "#q", entries[0].Params.Selector)
	assert.Equal(t, "recorded-1", entries[1].ID)
	assert.Equal(t, "#go", entries[1].Params.Selector)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New("s1")
	id := l.Create("extract count", Params{})
	l.Complete(id, StatusDone, "3")
	snap := l.Snapshot()
	snap[0].Messages[0] = "mutated"
	e, _ := l.Get(id)
	assert.Equal(t, "3", e.Messages[0])
}

func TestEntryJSONDurationInMilliseconds(t *testing.T) {
	d := 1500 * time.Millisecond
	data, err := json.Marshal(Entry{ID: "x", Title: "click", Status: StatusDone, Duration: &d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","title":"click","status":"done","messages":[],"duration":1500,"params":{},"kind":""}`, string(data))
}
