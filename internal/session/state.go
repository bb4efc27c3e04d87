package session

import (
	"recorder/internal/action"
	"recorder/internal/codegen"
	"recorder/internal/logging"
	"recorder/internal/protocol"
)

// The methods in this file run on the loop.

func (s *Session) clear() {
	s.stream = nil
	s.stepping = false
	logging.SessionDebug("session %s: stream cleared", s.id)
	s.streamChanged(false)
}

func (s *Session) setMode(mode protocol.Mode) {
	if s.mode == mode {
		return
	}
	s.mode = mode
	if s.cfg.Instrumentation != nil {
		s.cfg.Instrumentation.SetMode(string(mode))
	}
	s.deliver(protocol.MethodSetMode, s.surface.SetMode(mode))
	logging.Session("session %s: mode %s", s.id, mode)
}

// selectSource switches the shown source when id names a generator or a
// user-authored file. Unknown ids are ignored.
func (s *Session) selectSource(id string) {
	found := false
	for _, src := range s.allSources() {
		if src.ID == id {
			found = true
			break
		}
	}
	if !found {
		logging.SessionDebug("session %s: ignoring unknown source %q", s.id, id)
		return
	}
	s.selectedID = id
	if s.programmatic != nil {
		if gen, ok := codegen.Lookup(s.cfg.Generators, id); ok {
			s.programmatic = codegen.NewProgrammatic(gen, s.collapser)
		}
	}
	s.deliver(protocol.MethodSelectSource, s.surface.SelectSource(id))
}

func (s *Session) pause() {
	if s.paused {
		return
	}
	s.paused = true
	s.stepping = false
	s.log.Pause()
	s.deliver(protocol.MethodSetPaused, s.surface.SetPaused(true))
	s.refreshSources()
}

func (s *Session) resume() {
	s.stepping = false
	s.unpause()
}

// step resumes until the next recorded action, then pauses again.
func (s *Session) step() {
	if !s.paused {
		return
	}
	s.unpause()
	s.stepping = true
}

func (s *Session) unpause() {
	s.log.Resume()
	if !s.paused {
		return
	}
	s.paused = false
	s.deliver(protocol.MethodSetPaused, s.surface.SetPaused(false))
	s.refreshSources()
}

// appendRecord adds rec to the stream and keeps start times non-decreasing.
func (s *Session) appendRecord(rec action.Record) {
	if n := len(s.stream); n > 0 && rec.StartTime.Before(s.stream[n-1].StartTime) {
		rec.StartTime = s.stream[n-1].StartTime
	}
	s.stream = append(s.stream, rec)
	metricRecordedActions.WithLabelValues(string(rec.Kind())).Inc()
	s.streamChanged(false)

	if s.stepping {
		s.stepping = false
		s.pause()
	}
}

// attachSignal adds sig to the record at index i.
func (s *Session) attachSignal(i int, sig action.Signal) {
	s.stream[i] = s.stream[i].WithSignal(sig)
	s.streamChanged(true)
}

// streamChanged pushes everything derived from the stream. signalOnly
// marks a mutation that only attached a signal to an existing record.
func (s *Session) streamChanged(signalOnly bool) {
	collapsed := s.collapser.Collapse(s.stream)
	s.log.Derive(collapsed)

	if s.programmatic != nil {
		s.emitActionEvent(signalOnly)
		return
	}
	s.regenerateCollapsed(collapsed)
}

// refreshSources re-renders the sources of an unchanged stream so the
// paused highlight follows the pause state. Programmatic sessions push no
// sources, so there is nothing to refresh and no event to emit.
func (s *Session) refreshSources() {
	if s.programmatic != nil {
		return
	}
	s.regenerate()
}

func (s *Session) regenerate() {
	s.regenerateCollapsed(s.collapser.Collapse(s.stream))
}

func (s *Session) regenerateCollapsed(collapsed []action.Record) {
	s.sources = s.adapter.Regenerate(collapsed, s.opts, s.paused)
	if s.output != nil {
		for _, src := range s.sources {
			if src.IsPrimary && src.Error == "" {
				s.output.Update(src.Text)
			}
		}
	}
	s.publishSources()
}

func (s *Session) emitActionEvent(signalOnly bool) {
	if len(s.stream) == 0 || s.cfg.OnActionEvent == nil {
		return
	}
	var ev codegen.ActionEvent
	var err error
	if signalOnly {
		ev, err = s.programmatic.SignalAttached(s.stream, s.opts)
	} else {
		ev, err = s.programmatic.Observe(s.stream, s.opts)
	}
	if err != nil {
		logging.SessionWarn("session %s: programmatic generator failed: %v", s.id, err)
		return
	}
	s.cfg.OnActionEvent(ev)
}

func (s *Session) allSources() []codegen.Source {
	out := make([]codegen.Source, 0, len(s.sources)+len(s.userSources))
	out = append(out, s.sources...)
	return append(out, s.userSources...)
}

func (s *Session) publishSources() {
	s.deliver(protocol.MethodSetSources, s.surface.SetSources(s.allSources()))
}
