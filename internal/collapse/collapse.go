// Package collapse folds the raw ActionStream into the minimal sequence
// that is shown to the operator and emitted as code.
package collapse

import (
	"slices"
	"time"

	"recorder/internal/action"
)

// DefaultClickWindow bounds how far apart two clicks may start and still
// count as one gesture.
const DefaultClickWindow = 500 * time.Millisecond

// Collapser merges consecutive records that describe one logical gesture.
type Collapser struct {
	ClickWindow time.Duration
}

// New returns a Collapser with the given click window. A non-positive
// window selects DefaultClickWindow.
func New(clickWindow time.Duration) Collapser {
	if clickWindow <= 0 {
		clickWindow = DefaultClickWindow
	}
	return Collapser{ClickWindow: clickWindow}
}

var defaultCollapser = New(DefaultClickWindow)

// Collapse folds stream using the default click window.
func Collapse(stream []action.Record) []action.Record {
	return defaultCollapser.Collapse(stream)
}

// ShouldMerge reports whether b continues a under the default window.
func ShouldMerge(a, b action.Record) bool {
	return defaultCollapser.ShouldMerge(a, b)
}

// Collapse returns a new slice; stream is never modified. Running it on its
// own output is a no-op.
func (c Collapser) Collapse(stream []action.Record) []action.Record {
	out := make([]action.Record, 0, len(stream))
	for _, rec := range stream {
		if n := len(out); n > 0 && c.ShouldMerge(out[n-1], rec) {
			out[n-1] = merge(out[n-1], rec)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ShouldMerge reports whether b is a strict continuation of a.
func (c Collapser) ShouldMerge(a, b action.Record) bool {
	if a.Synthetic || b.Synthetic {
		return false
	}
	if !a.Frame.Same(b.Frame) || a.Kind() != b.Kind() || a.Selector() != b.Selector() {
		return false
	}
	switch prev := a.Action.(type) {
	case action.Fill, action.Select, action.Check, action.Uncheck:
		return true
	case action.Click:
		next := b.Action.(action.Click)
		if prev.Button != next.Button || prev.Modifiers != next.Modifiers {
			return false
		}
		if !samePosition(prev.Position, next.Position) {
			return false
		}
		gap := b.StartTime.Sub(a.StartTime)
		return gap >= 0 && gap <= c.ClickWindow
	default:
		return false
	}
}

func samePosition(a, b *action.Point) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// merge keeps b's terminal values, a's start time, and both signal lists
// in order.
func merge(a, b action.Record) action.Record {
	signals := append(slices.Clone(a.Signals()), b.Signals()...)
	merged := b
	merged.StartTime = a.StartTime
	merged.Action = action.WithSignals(b.Action, signals)
	return merged
}
