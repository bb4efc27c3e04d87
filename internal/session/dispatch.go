package session

import (
	"context"
	"errors"
	"fmt"

	"recorder/internal/executor"
	"recorder/internal/logging"
	"recorder/internal/protocol"
)

// Dispatch handles one inbound event. State events are applied on the
// loop before Dispatch returns. Commands run on the caller's goroutine
// and their failures are returned to the caller.
func (s *Session) Dispatch(ctx context.Context, ev protocol.Event) error {
	switch ev := ev.(type) {
	case protocol.Clear:
		return s.do(s.clear)
	case protocol.FileChanged:
		return s.do(func() { s.selectSource(ev.FileID) })
	case protocol.SetAutoExpect:
		return s.do(func() {
			s.opts.AutoExpect = ev.AutoExpect
			s.streamChanged(false)
		})
	case protocol.SetMode:
		return s.do(func() { s.setMode(ev.Mode) })
	case protocol.Resume:
		return s.do(s.resume)
	case protocol.Pause:
		return s.do(s.pause)
	case protocol.Step:
		return s.do(s.step)
	case protocol.HighlightRequested:
		return s.highlight(ctx, ev)
	case protocol.PerformAction:
		res, err := s.exec.PerformAction(ctx, executor.ActionRequest{Locator: ev.Locator, Action: ev.Action, Args: ev.Args})
		s.publishResult(res, err, false)
		return err
	case protocol.PerformExtraction:
		res, err := s.exec.PerformExtraction(ctx, executor.ExtractionRequest{Locator: ev.Locator, Extraction: ev.Extraction, Args: ev.Args})
		s.publishResult(res, err, false)
		return err
	case protocol.ExecuteArbitraryCode:
		res, err := s.exec.ExecuteCode(ctx, ev.Code)
		s.publishResult(res, err, true)
		return err
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnhandledEvent, ev)
	}
}

// Submit dispatches ev without returning its error. Commands run
// concurrently and are bound to the session's lifetime; state events are
// applied in arrival order. Failures are logged and never escape.
func (s *Session) Submit(ev protocol.Event) {
	if !protocol.IsCommand(ev) {
		if err := s.Dispatch(s.ctx, ev); err != nil {
			logging.SessionWarn("session %s: %s: %v", s.id, ev.Name(), err)
		}
		return
	}
	s.cmdMu.Lock()
	if s.ctx.Err() != nil {
		s.cmdMu.Unlock()
		logging.SessionDebug("session %s: dropping %s after close", s.id, ev.Name())
		return
	}
	s.commands.Add(1)
	s.cmdMu.Unlock()
	go func() {
		defer s.commands.Done()
		if err := s.Dispatch(s.ctx, ev); err != nil {
			logCommandError(s.id, ev.Name(), err)
		}
	}()
}

func logCommandError(id, name string, err error) {
	var verr *executor.ValidationError
	var xerr *executor.ExecutionError
	switch {
	case errors.As(err, &verr):
		logging.SessionWarn("session %s: %s rejected: %v", id, name, err)
	case errors.As(err, &xerr):
		logging.SessionWarn("session %s: %s failed (entry %s): %v", id, name, xerr.LogID, err)
	default:
		logging.SessionWarn("session %s: %s: %v", id, name, err)
	}
}

// publishResult pushes a command's value. Failed code snippets also push
// their error so the operator sees why nothing came back.
func (s *Session) publishResult(res executor.Result, err error, code bool) {
	var out protocol.CommandResult
	switch {
	case err == nil && res.Value != nil:
		out = protocol.CommandResult{LogID: res.LogID, Value: res.Value, Extraction: res.Extraction}
	case err != nil && code:
		var xerr *executor.ExecutionError
		if !errors.As(err, &xerr) {
			return
		}
		out = protocol.CommandResult{LogID: xerr.LogID, Error: err.Error()}
	default:
		return
	}
	s.post(func() {
		s.deliver(protocol.MethodArbitraryCommandResult, s.surface.ArbitraryCommandResult(out))
	})
}

func (s *Session) highlight(ctx context.Context, ev protocol.HighlightRequested) error {
	if ev.Selector == "" && ev.AriaTemplate != "" {
		logging.SessionDebug("session %s: aria template highlighting is not supported", s.id)
	}
	var errs []error
	for _, p := range s.pages.Pages() {
		if err := p.Highlight(ctx, ev.Selector); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Alias(), err))
		}
	}
	return errors.Join(errs...)
}
