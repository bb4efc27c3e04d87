package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recorder/internal/action"
	"recorder/internal/browser"
	"recorder/internal/calllog"
	"recorder/internal/logging"
)

// assertPoll is how often replayed assertions re-check the page.
const assertPoll = 100 * time.Millisecond

// Replay runs a recording record by record, each under its own call-log
// entry and deadline. It stops at the first failure and returns how many
// records completed.
func (e *Executor) Replay(ctx context.Context, records []action.Record) (int, error) {
	done := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ran, err := e.replayOne(ctx, rec)
		if err != nil {
			return done, fmt.Errorf("record %d (%s): %w", i, rec.Kind(), err)
		}
		if ran {
			done++
		}
	}
	return done, nil
}

func (e *Executor) replayOne(ctx context.Context, rec action.Record) (bool, error) {
	sel := rec.Selector()
	switch a := rec.Action.(type) {
	case action.OpenPage:
		if a.URL == "" || a.URL == "about:blank" {
			return false, nil
		}
		_, err := e.PerformAction(ctx, ActionRequest{Action: "navigate", Args: []string{a.URL}})
		return err == nil, err
	case action.Navigate:
		_, err := e.PerformAction(ctx, ActionRequest{Action: "navigate", Args: []string{a.URL}})
		return err == nil, err
	case action.ClosePage, action.AssertSnapshot:
		logging.ExecutorDebug("replay skips %s", rec.Kind())
		return false, nil
	case action.Extract:
		_, err := e.PerformExtraction(ctx, ExtractionRequest{Locator: sel, Extraction: string(a.Extraction), Args: a.Args})
		return err == nil, err
	case action.ExecuteCode:
		_, err := e.ExecuteCode(ctx, a.Code)
		return err == nil, err
	case action.AssertText, action.AssertValue, action.AssertChecked, action.AssertVisible:
		_, err := e.assert(ctx, rec)
		return err == nil, err
	}

	if strings.TrimSpace(sel) == "" {
		return false, &ValidationError{Field: "selector", Reason: "recorded " + string(rec.Kind()) + " has no selector"}
	}
	frame, err := e.resolveFrame(ctx, sel)
	if err != nil {
		return false, err
	}
	a := action.WithSignals(rec.Action, nil)
	_, err = e.run(ctx, job{
		kind:   kindAction,
		act:    a,
		frame:  frame.Descriptor(),
		params: calllog.Params{Selector: sel},
		do: func(ctx context.Context) (any, error) {
			return nil, frame.Perform(ctx, a)
		},
	})
	return err == nil, err
}

// assert polls the page until the recorded expectation holds or the
// deadline passes.
func (e *Executor) assert(ctx context.Context, rec action.Record) (Result, error) {
	sel := rec.Selector()
	frame, err := e.resolveFrame(ctx, sel)
	if err != nil {
		return Result{}, err
	}
	check := assertion(rec.Action)
	return e.run(ctx, job{
		kind:   kindExtraction,
		act:    rec.Action,
		frame:  frame.Descriptor(),
		params: calllog.Params{Selector: sel},
		do: func(ctx context.Context) (any, error) {
			ticker := time.NewTicker(assertPoll)
			defer ticker.Stop()
			var last error
			for {
				if last = check(ctx, frame, sel); last == nil {
					return nil, nil
				}
				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("%v: %w", last, ctx.Err())
				case <-ticker.C:
				}
			}
		},
	})
}

type checkFunc func(ctx context.Context, f browser.Frame, sel string) error

func assertion(a action.Action) checkFunc {
	switch a := a.(type) {
	case action.AssertText:
		return func(ctx context.Context, f browser.Frame, sel string) error {
			v, err := f.Extract(ctx, sel, action.ExtractInnerText, nil)
			if err != nil {
				return err
			}
			got, _ := v.(string)
			if a.Substring && strings.Contains(got, a.Text) || got == a.Text {
				return nil
			}
			return fmt.Errorf("expected text %q, got %q", a.Text, got)
		}
	case action.AssertValue:
		return func(ctx context.Context, f browser.Frame, sel string) error {
			v, err := f.Extract(ctx, sel, action.ExtractInputValue, nil)
			if err != nil {
				return err
			}
			if got, _ := v.(string); got != a.Value {
				return fmt.Errorf("expected value %q, got %q", a.Value, got)
			}
			return nil
		}
	case action.AssertChecked:
		return func(ctx context.Context, f browser.Frame, sel string) error {
			v, err := f.Extract(ctx, sel, action.ExtractIsChecked, nil)
			if err != nil {
				return err
			}
			if got, _ := v.(bool); got != a.Checked {
				return fmt.Errorf("expected checked=%v", a.Checked)
			}
			return nil
		}
	default:
		return func(ctx context.Context, f browser.Frame, sel string) error {
			v, err := f.Extract(ctx, sel, action.ExtractIsVisible, nil)
			if err != nil {
				return err
			}
			if visible, _ := v.(bool); !visible {
				return fmt.Errorf("%s is not visible", sel)
			}
			return nil
		}
	}
}
