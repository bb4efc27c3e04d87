package codegen

import (
	"recorder/internal/action"
	"recorder/internal/collapse"
)

// ActionEventType distinguishes a new gesture from a continuation.
type ActionEventType string

const (
	ActionAdded   ActionEventType = "actionAdded"
	ActionUpdated ActionEventType = "actionUpdated"
)

// ActionEvent is emitted in programmatic mode instead of full Sources.
type ActionEvent struct {
	Type     ActionEventType `json:"type"`
	Fragment string          `json:"fragment"`
	Record   action.Record   `json:"action"`
}

// Programmatic emits one generator's fragment for the newest or most
// recently updated action.
type Programmatic struct {
	gen       Generator
	collapser collapse.Collapser
}

// NewProgrammatic binds programmatic mode to a single generator.
func NewProgrammatic(gen Generator, collapser collapse.Collapser) *Programmatic {
	return &Programmatic{gen: gen, collapser: collapser}
}

// Observe reports the event for a raw stream whose last record was just
// appended. A record that continues its predecessor is an update.
func (p *Programmatic) Observe(stream []action.Record, opts Options) (ActionEvent, error) {
	typ := ActionAdded
	if n := len(stream); n >= 2 && p.collapser.ShouldMerge(stream[n-2], stream[n-1]) {
		typ = ActionUpdated
	}
	return p.event(typ, stream, opts)
}

// SignalAttached reports the event for a stream whose last collapsed action
// gained a signal.
func (p *Programmatic) SignalAttached(stream []action.Record, opts Options) (ActionEvent, error) {
	return p.event(ActionUpdated, stream, opts)
}

func (p *Programmatic) event(typ ActionEventType, stream []action.Record, opts Options) (ActionEvent, error) {
	collapsed := p.collapser.Collapse(stream)
	if len(collapsed) == 0 {
		return ActionEvent{}, nil
	}
	last := collapsed[len(collapsed)-1]
	out, err := p.gen.Generate([]action.Record{last}, opts)
	if err != nil {
		return ActionEvent{}, err
	}
	ev := ActionEvent{Type: typ, Record: last}
	if len(out.ActionTexts) > 0 {
		ev.Fragment = out.ActionTexts[0]
	}
	return ev, nil
}
