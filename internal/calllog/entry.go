// Package calllog tracks the lifecycle of recorded and operator-issued
// commands as call-log entries.
package calllog

import (
	"encoding/json"
	"slices"
	"time"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusError      Status = "error"
	StatusPaused     Status = "paused"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Kind separates derived, command and pause entries.
type Kind string

const (
	KindRecorded Kind = "recorded"
	KindCommand  Kind = "command"
	KindPause    Kind = "pause"
)

// Params carries the target of the logged operation.
type Params struct {
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Entry is one line of the call log.
type Entry struct {
	ID       string
	Title    string
	Status   Status
	Messages []string
	Error    string
	// Duration is set iff the entry reached a terminal status.
	Duration  *time.Duration
	Params    Params
	Kind      Kind
	SessionID string
	CreatedAt time.Time
}

func (e Entry) clone() Entry {
	e.Messages = slices.Clone(e.Messages)
	if e.Duration != nil {
		d := *e.Duration
		e.Duration = &d
	}
	return e
}

type wireEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   Status   `json:"status"`
	Messages []string `json:"messages"`
	Error    string   `json:"error,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Params   Params   `json:"params"`
	Kind     Kind     `json:"kind"`
}

// MarshalJSON renders the duration in milliseconds, the unit the control
// surface displays.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := wireEntry{
		ID:       e.ID,
		Title:    e.Title,
		Status:   e.Status,
		Messages: e.Messages,
		Error:    e.Error,
		Params:   e.Params,
		Kind:     e.Kind,
	}
	if w.Messages == nil {
		w.Messages = []string{}
	}
	if e.Duration != nil {
		ms := float64(*e.Duration) / float64(time.Millisecond)
		w.Duration = &ms
	}
	return json.Marshal(w)
}
