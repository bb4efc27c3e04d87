// Package protocol defines the messages exchanged between a recording
// session and its control surface: the closed set of inbound events and
// the outbound Surface interface.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is wrapped by Error for an unrecognized event name.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrUnhandledEvent is returned by a dispatcher that met an Event
	// variant it has no branch for.
	ErrUnhandledEvent = errors.New("unhandled event")
)

// Error is a protocol violation: the message could not be turned into an
// Event. It is never a command failure.
type Error struct {
	Event  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "protocol error"
	if e.Event != "" {
		msg += " in " + e.Event
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Event is an inbound message from the control surface. The set of
// implementations is closed.
type Event interface {
	Name() string
	sealed()
}

type (
	Clear struct{}

	FileChanged struct {
		FileID string `json:"fileId"`
	}

	SetAutoExpect struct {
		AutoExpect bool `json:"autoExpect"`
	}

	SetMode struct {
		Mode Mode `json:"mode"`
	}

	Resume struct{}
	Pause  struct{}
	Step   struct{}

	HighlightRequested struct {
		Selector     string `json:"selector,omitempty"`
		AriaTemplate string `json:"ariaTemplate,omitempty"`
	}

	PerformAction struct {
		Locator string   `json:"locator"`
		Action  string   `json:"action"`
		Args    []string `json:"args,omitempty"`
	}

	PerformExtraction struct {
		Locator    string   `json:"locator"`
		Extraction string   `json:"extraction"`
		Args       []string `json:"args,omitempty"`
	}

	ExecuteArbitraryCode struct {
		Code string `json:"code"`
	}
)

const (
	EventClear                = "clear"
	EventFileChanged          = "fileChanged"
	EventSetAutoExpect        = "setAutoExpect"
	EventSetMode              = "setMode"
	EventResume               = "resume"
	EventPause                = "pause"
	EventStep                 = "step"
	EventHighlightRequested   = "highlightRequested"
	EventPerformAction        = "performAction"
	EventPerformExtraction    = "performExtraction"
	EventExecuteArbitraryCode = "executeArbitraryCode"
)

func (Clear) Name() string                { return EventClear }
func (FileChanged) Name() string          { return EventFileChanged }
func (SetAutoExpect) Name() string        { return EventSetAutoExpect }
func (SetMode) Name() string              { return EventSetMode }
func (Resume) Name() string               { return EventResume }
func (Pause) Name() string                { return EventPause }
func (Step) Name() string                 { return EventStep }
func (HighlightRequested) Name() string   { return EventHighlightRequested }
func (PerformAction) Name() string        { return EventPerformAction }
func (PerformExtraction) Name() string    { return EventPerformExtraction }
func (ExecuteArbitraryCode) Name() string { return EventExecuteArbitraryCode }

func (Clear) sealed()                {}
func (FileChanged) sealed()          {}
func (SetAutoExpect) sealed()        {}
func (SetMode) sealed()              {}
func (Resume) sealed()               {}
func (Pause) sealed()                {}
func (Step) sealed()                 {}
func (HighlightRequested) sealed()   {}
func (PerformAction) sealed()        {}
func (PerformExtraction) sealed()    {}
func (ExecuteArbitraryCode) sealed() {}

// IsCommand reports whether e runs through the command executor.
func IsCommand(e Event) bool {
	switch e.(type) {
	case PerformAction, PerformExtraction, ExecuteArbitraryCode:
		return true
	}
	return false
}

type envelope struct {
	Event  string          `json:"event"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Decode parses one inbound message of the form {"event", "params"}.
// Every failure is a *Error.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &Error{Reason: "malformed message", Err: err}
	}
	if env.Event == "" {
		return nil, &Error{Reason: "missing event name"}
	}

	var ev Event
	var err error
	switch env.Event {
	case EventClear:
		ev = Clear{}
	case EventResume:
		ev = Resume{}
	case EventPause:
		ev = Pause{}
	case EventStep:
		ev = Step{}
	case EventFileChanged:
		ev, err = decodeParams[FileChanged](env.Params)
	case EventSetAutoExpect:
		ev, err = decodeParams[SetAutoExpect](env.Params)
	case EventSetMode:
		var p SetMode
		if p, err = decodeParams[SetMode](env.Params); err == nil && !p.Mode.Valid() {
			err = fmt.Errorf("unknown mode %q", p.Mode)
		}
		ev = p
	case EventHighlightRequested:
		ev, err = decodeParams[HighlightRequested](env.Params)
	case EventPerformAction:
		ev, err = decodeParams[PerformAction](env.Params)
	case EventPerformExtraction:
		ev, err = decodeParams[PerformExtraction](env.Params)
	case EventExecuteArbitraryCode:
		ev, err = decodeParams[ExecuteArbitraryCode](env.Params)
	default:
		return nil, &Error{Event: env.Event, Reason: "unrecognized event kind", Err: ErrUnknownEvent}
	}
	if err != nil {
		return nil, &Error{Event: env.Event, Reason: "malformed params", Err: err}
	}
	return ev, nil
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	err := dec.Decode(&p)
	return p, err
}

// Encode renders ev in the inbound wire form. The control surface's
// clients and tests use it to build messages.
func Encode(ev Event) ([]byte, error) {
	env := struct {
		Event  string `json:"event"`
		Params Event  `json:"params,omitempty"`
	}{Event: ev.Name()}
	switch ev.(type) {
	case Clear, Resume, Pause, Step:
	default:
		env.Params = ev
	}
	return json.Marshal(env)
}
