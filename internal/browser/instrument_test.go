package browser

import (
	"testing"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/action"
)

func TestEventRecord(t *testing.T) {
	frame := action.FrameDescriptor{PageID: "t1", PageAlias: "page"}
	ts := float64(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli())

	tests := []struct {
		name string
		ev   pageEvent
		want action.Action
	}{
		{
			name: "click defaults",
			ev:   pageEvent{Type: "click", Selector: "#go"},
			want: action.Click{Base: action.Base{Selector: "#go"}, Button: "left", ClickCount: 1},
		},
		{
			name: "double click with shift",
			ev:   pageEvent{Type: "click", Selector: "#go", Button: "left", ClickCount: 2, Modifiers: action.ModifierShift},
			want: action.Click{Base: action.Base{Selector: "#go"}, Button: "left", ClickCount: 2, Modifiers: action.ModifierShift},
		},
		{
			name: "fill",
			ev:   pageEvent{Type: "fill", Selector: "#q", Value: "rod"},
			want: action.Fill{Base: action.Base{Selector: "#q"}, Text: "rod"},
		},
		{
			name: "press",
			ev:   pageEvent{Type: "press", Selector: "#q", Key: "Enter"},
			want: action.Press{Base: action.Base{Selector: "#q"}, Key: "Enter"},
		},
		{
			name: "select",
			ev:   pageEvent{Type: "select", Selector: "#c", Options: []string{"red"}},
			want: action.Select{Base: action.Base{Selector: "#c"}, Options: []string{"red"}},
		},
		{
			name: "uncheck",
			ev:   pageEvent{Type: "uncheck", Selector: "#tos"},
			want: action.Uncheck{Base: action.Base{Selector: "#tos"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.TS = ts
			rec, ok := eventRecord(frame, tt.ev)
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Action)
			assert.Equal(t, frame, rec.Frame)
			assert.Equal(t, int64(ts), rec.StartTime.UnixMilli())
		})
	}
}

func TestEventRecordSkipsPicks(t *testing.T) {
	_, ok := eventRecord(action.FrameDescriptor{}, pageEvent{Type: "pick", Selector: "#x"})
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	k, err := Key("Enter")
	require.NoError(t, err)
	assert.Equal(t, input.Enter, k)

	k, err = Key("a")
	require.NoError(t, err)
	assert.Equal(t, input.Key('a'), k)

	_, err = Key("Hyper")
	assert.Error(t, err)
}

func TestModifierKeys(t *testing.T) {
	assert.Empty(t, ModifierKeys(0))
	assert.Equal(t, []input.Key{input.ControlLeft, input.ShiftLeft}, ModifierKeys(action.ModifierControl|action.ModifierShift))
}

func TestParseShortcut(t *testing.T) {
	tests := []struct {
		in   string
		key  string
		mods int
	}{
		{"Enter", "Enter", 0},
		{"Control+a", "a", action.ModifierControl},
		{"Control+Shift+K", "K", action.ModifierControl | action.ModifierShift},
		{"+", "+", 0},
		{"Shift++", "+", action.ModifierShift},
	}
	for _, tt := range tests {
		key, mods := ParseShortcut(tt.in)
		assert.Equal(t, tt.key, key, tt.in)
		assert.Equal(t, tt.mods, mods, tt.in)
	}
}
