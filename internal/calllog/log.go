package calllog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recorder/internal/action"
)

// Log owns the temporary entries of one session and the batch of entries
// derived from its recorded actions.
//
// Mutations run on the session loop; the mutex only guards readers such as
// the audit sink and the control surface's initial snapshot.
type Log struct {
	mu        sync.Mutex
	sessionID string
	now       func() time.Time

	derived []Entry
	order   []string
	byID    map[string]*Entry

	onChange   func()
	onTerminal func(Entry)
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// OnChange registers a hook invoked after every mutation.
func OnChange(fn func()) Option {
	return func(l *Log) { l.onChange = fn }
}

// OnTerminal registers a hook invoked with the final state of every
// command entry that reaches done or error.
func OnTerminal(fn func(Entry)) Option {
	return func(l *Log) { l.onTerminal = fn }
}

// New returns an empty log for the given session.
func New(sessionID string, opts ...Option) *Log {
	l := &Log{
		sessionID: sessionID,
		now:       time.Now,
		byID:      make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create inserts an in-progress command entry and returns its id. The id
// is available before the underlying operation starts.
func (l *Log) Create(title string, params Params) string {
	l.mu.Lock()
	id := uuid.NewString()
	l.insert(&Entry{
		ID:        id,
		Title:     title,
		Status:    StatusInProgress,
		Params:    params,
		Kind:      KindCommand,
		SessionID: l.sessionID,
		CreatedAt: l.now(),
	})
	l.mu.Unlock()

	l.changed()
	return id
}

func (l *Log) insert(e *Entry) {
	l.byID[e.ID] = e
	l.order = append(l.order, e.ID)
}

// Complete moves an in-progress entry to done or error. For done, a
// non-empty message is appended for display; for error it becomes the
// entry's error. It returns false when the id is unknown, the entry is
// already terminal, or status is not terminal.
func (l *Log) Complete(id string, status Status, message string) bool {
	if !status.Terminal() {
		return false
	}

	l.mu.Lock()
	e, ok := l.byID[id]
	if !ok || e.Status != StatusInProgress {
		l.mu.Unlock()
		return false
	}
	e.Status = status
	d := l.elapsed(e.CreatedAt)
	e.Duration = &d
	switch {
	case status == StatusError:
		e.Error = message
	case message != "":
		e.Messages = append(e.Messages, message)
	}
	final := e.clone()
	l.mu.Unlock()

	if l.onTerminal != nil {
		l.onTerminal(final)
	}
	l.changed()
	return true
}

func (l *Log) elapsed(since time.Time) time.Duration {
	d := l.now().Sub(since)
	if d < 0 {
		return 0
	}
	return d
}

// Pause adds a paused entry and returns its id.
func (l *Log) Pause() string {
	l.mu.Lock()
	id := uuid.NewString()
	l.insert(&Entry{
		ID:        id,
		Title:     "pause",
		Status:    StatusPaused,
		Kind:      KindPause,
		SessionID: l.sessionID,
		CreatedAt: l.now(),
	})
	l.mu.Unlock()

	l.changed()
	return id
}

// Resume completes every open pause entry as done. It reports whether any
// entry changed.
func (l *Log) Resume() bool {
	l.mu.Lock()
	changed := false
	for _, id := range l.order {
		e := l.byID[id]
		if e.Status != StatusPaused {
			continue
		}
		e.Status = StatusDone
		d := l.elapsed(e.CreatedAt)
		e.Duration = &d
		changed = true
	}
	l.mu.Unlock()

	if changed {
		l.changed()
	}
	return changed
}

// Derive replaces the derived entries with one done entry per collapsed
// recorded action.
func (l *Log) Derive(collapsed []action.Record) {
	entries := DeriveEntries(collapsed)

	l.mu.Lock()
	l.derived = entries
	l.mu.Unlock()

	l.changed()
}

// DeriveEntries maps recorded actions to call-log entries. Entries carry a
// positional id because the batch is always rebuilt as a whole. Synthetic
// records are skipped: the command that produced them already owns an
// entry.
func DeriveEntries(collapsed []action.Record) []Entry {
	entries := make([]Entry, 0, len(collapsed))
	for _, rec := range collapsed {
		if rec.Synthetic {
			continue
		}
		var zero time.Duration
		e := Entry{
			ID:        fmt.Sprintf("recorded-%d", len(entries)),
			Title:     action.Title(rec.Action),
			Status:    StatusDone,
			Duration:  &zero,
			Kind:      KindRecorded,
			CreatedAt: rec.StartTime,
			Params:    Params{Selector: rec.Selector()},
		}
		switch a := rec.Action.(type) {
		case action.Navigate:
			e.Params.URL = a.URL
		case action.OpenPage:
			e.Params.URL = a.URL
		case action.Fill:
			e.Messages = []string{fmt.Sprintf("value %q", a.Text)}
		case action.Select:
			e.Messages = []string{fmt.Sprintf("options %q", a.Options)}
		}
		entries = append(entries, e)
	}
	return entries
}

// Get returns a copy of the entry with the given id.
func (l *Log) Get(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.byID[id]; ok {
		return e.clone(), true
	}
	for _, e := range l.derived {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Snapshot returns derived entries followed by temporary entries in
// creation order.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.derived)+len(l.order))
	for _, e := range l.derived {
		out = append(out, e.clone())
	}
	for _, id := range l.order {
		out = append(out, l.byID[id].clone())
	}
	return out
}

func (l *Log) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}
