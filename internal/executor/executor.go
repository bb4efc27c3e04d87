// Package executor runs operator-issued commands against the live page:
// ad hoc actions, read-only extractions and sandboxed code. Every command
// gets its own call-log entry and runs under a fixed deadline.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recorder/internal/action"
	"recorder/internal/browser"
	"recorder/internal/calllog"
	"recorder/internal/logging"
	"recorder/internal/sandbox"
)

// DefaultTimeout bounds every command from call-log entry to terminal status.
const DefaultTimeout = 5 * time.Second

const (
	kindAction     = "action"
	kindExtraction = "extraction"
	kindCode       = "code"
)

// CallLog is the part of the call log the executor drives.
type CallLog interface {
	Create(title string, params calllog.Params) string
	Complete(id string, status calllog.Status, message string) bool
}

// ActionRequest is the input of PerformAction.
type ActionRequest struct {
	Locator string
	Action  string
	Args    []string
}

// ExtractionRequest is the input of PerformExtraction.
type ExtractionRequest struct {
	Locator    string
	Extraction string
	Args       []string
}

// Result is what a successful command produced. Value is nil when the
// command has nothing to show.
type Result struct {
	LogID      string
	Value      any
	Extraction bool
}

// Executor runs commands against the pages of one session.
type Executor struct {
	pages   browser.PageSource
	log     CallLog
	eval    *sandbox.Evaluator
	timeout time.Duration
	record  func(action.Record)
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout replaces DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRecorder receives the synthetic record of every successful command.
func WithRecorder(fn func(action.Record)) Option {
	return func(e *Executor) { e.record = fn }
}

// WithEvaluator replaces the sandbox used for arbitrary code.
func WithEvaluator(ev *sandbox.Evaluator) Option {
	return func(e *Executor) { e.eval = ev }
}

// New returns an executor over pages that logs into log.
func New(pages browser.PageSource, log CallLog, opts ...Option) *Executor {
	e := &Executor{
		pages:   pages,
		log:     log,
		eval:    sandbox.NewEvaluator(),
		timeout: DefaultTimeout,
		record:  func(action.Record) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-command deadline.
func (e *Executor) Timeout() time.Duration { return e.timeout }

// PerformAction runs one ad hoc gesture.
func (e *Executor) PerformAction(ctx context.Context, req ActionRequest) (Result, error) {
	a, err := buildAction(req)
	if err != nil {
		return Result{}, err
	}

	if nav, ok := a.(action.Navigate); ok {
		page, err := e.firstPage()
		if err != nil {
			return Result{}, err
		}
		return e.run(ctx, job{
			kind:   kindAction,
			act:    nav,
			frame:  page.MainFrame().Descriptor(),
			params: calllog.Params{URL: nav.URL},
			do: func(ctx context.Context) (any, error) {
				return nil, page.Navigate(ctx, nav.URL)
			},
		})
	}

	frame, err := e.resolveFrame(ctx, req.Locator)
	if err != nil {
		return Result{}, err
	}
	return e.run(ctx, job{
		kind:   kindAction,
		act:    a,
		frame:  frame.Descriptor(),
		params: calllog.Params{Selector: req.Locator},
		do: func(ctx context.Context) (any, error) {
			return nil, frame.Perform(ctx, a)
		},
	})
}

// PerformExtraction runs one read-only query.
func (e *Executor) PerformExtraction(ctx context.Context, req ExtractionRequest) (Result, error) {
	if strings.TrimSpace(req.Locator) == "" {
		return Result{}, &ValidationError{Field: "locator", Reason: "must not be empty"}
	}
	kind, ok := action.ParseExtraction(req.Extraction)
	if !ok {
		return Result{}, &ValidationError{Field: "extraction", Reason: "unsupported extraction " + req.Extraction, Err: ErrUnsupported}
	}
	if kind == action.ExtractGetAttribute && (len(req.Args) == 0 || req.Args[0] == "") {
		return Result{}, &ValidationError{Field: "args", Reason: "getAttribute needs an attribute name"}
	}

	frame, err := e.resolveFrame(ctx, req.Locator)
	if err != nil {
		return Result{}, err
	}
	a := action.Extract{Base: action.Base{Selector: req.Locator}, Extraction: kind, Args: req.Args}
	return e.run(ctx, job{
		kind:   kindExtraction,
		act:    a,
		frame:  frame.Descriptor(),
		params: calllog.Params{Selector: req.Locator},
		do: func(ctx context.Context) (any, error) {
			return frame.Extract(ctx, req.Locator, kind, req.Args)
		},
	})
}

// ExecuteCode evaluates an operator snippet against the first tracked page.
// A snippet the sandbox rejects fails like any other command, with an error
// entry in the call log.
func (e *Executor) ExecuteCode(ctx context.Context, code string) (Result, error) {
	if strings.TrimSpace(code) == "" {
		return Result{}, &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	page, err := e.firstPage()
	if err != nil {
		return Result{}, err
	}
	return e.run(ctx, job{
		kind:  kindCode,
		act:   action.ExecuteCode{Code: code},
		frame: page.MainFrame().Descriptor(),
		do: func(ctx context.Context) (any, error) {
			return e.eval.Run(ctx, page, code)
		},
	})
}

type job struct {
	kind   string
	act    action.Action
	frame  action.FrameDescriptor
	params calllog.Params
	do     func(ctx context.Context) (any, error)
}

func (e *Executor) run(ctx context.Context, j job) (Result, error) {
	title := action.Title(j.act)
	id := e.log.Create(title, j.params)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	unmute := e.mute()
	val, err := j.do(runCtx)
	unmute()
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, e.timeout, err)
	}
	cancel()

	elapsed := time.Since(start)
	metricCommandDuration.WithLabelValues(j.kind).Observe(elapsed.Seconds())

	if err != nil {
		metricCommands.WithLabelValues(j.kind, string(calllog.StatusError)).Inc()
		e.log.Complete(id, calllog.StatusError, err.Error())
		logging.ExecutorWarn("%s failed after %v: %v", title, elapsed, err)
		return Result{LogID: id}, &ExecutionError{Title: title, LogID: id, Err: err}
	}

	metricCommands.WithLabelValues(j.kind, string(calllog.StatusDone)).Inc()
	e.log.Complete(id, calllog.StatusDone, describe(val))
	logging.ExecutorDebug("%s done in %v", title, elapsed)

	e.record(action.Record{Frame: j.frame, Action: j.act, StartTime: start, Synthetic: true})
	return Result{LogID: id, Value: val, Extraction: j.kind == kindExtraction}, nil
}

// mute keeps the page instrumentation from recording the input a command
// drives; the command's own synthetic record stands for it.
func (e *Executor) mute() func() {
	if m, ok := e.pages.(browser.Muter); ok {
		return m.Mute()
	}
	return func() {}
}

// describe renders a command's value for the call log.
func describe(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func (e *Executor) firstPage() (browser.Page, error) {
	pages := e.pages.Pages()
	if len(pages) == 0 {
		return nil, &ResolutionError{Err: ErrNoPages}
	}
	return pages[0], nil
}

// resolveFrame returns the first frame, across pages in tracking order,
// where sel currently matches. With no match anywhere the first page's
// main frame is used so the command waits there until its deadline.
func (e *Executor) resolveFrame(ctx context.Context, sel string) (browser.Frame, error) {
	pages := e.pages.Pages()
	if len(pages) == 0 {
		return nil, &ResolutionError{Selector: sel, Err: ErrNoPages}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	for _, p := range pages {
		frames, err := p.Frames(ctx)
		if err != nil {
			logging.ExecutorDebug("listing frames of %s: %v", p.Alias(), err)
		}
		for _, f := range frames {
			if n, err := f.Count(ctx, sel); err == nil && n > 0 {
				return f, nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ResolutionError{Selector: sel, Err: err}
	}
	return pages[0].MainFrame(), nil
}

// buildAction validates an ad hoc action request and returns the action
// it describes.
func buildAction(req ActionRequest) (action.Action, error) {
	arg := func(i int) string {
		if i < len(req.Args) {
			return req.Args[i]
		}
		return ""
	}
	if req.Action == "navigate" {
		if arg(0) == "" {
			return nil, &ValidationError{Field: "args", Reason: "navigate needs a url"}
		}
		return action.Navigate{URL: arg(0)}, nil
	}
	if strings.TrimSpace(req.Locator) == "" {
		return nil, &ValidationError{Field: "locator", Reason: "must not be empty"}
	}

	base := action.Base{Selector: req.Locator}
	switch req.Action {
	case "click":
		return action.Click{Base: base, Button: "left", ClickCount: 1}, nil
	case "dblclick":
		return action.Click{Base: base, Button: "left", ClickCount: 2}, nil
	case "fill":
		return action.Fill{Base: base, Text: arg(0)}, nil
	case "press":
		if arg(0) == "" {
			return nil, &ValidationError{Field: "args", Reason: "press needs a key"}
		}
		key, mods := browser.ParseShortcut(arg(0))
		return action.Press{Base: base, Key: key, Modifiers: mods}, nil
	case "check":
		return action.Check{Base: base}, nil
	case "uncheck":
		return action.Uncheck{Base: base}, nil
	case "select":
		if len(req.Args) == 0 {
			return nil, &ValidationError{Field: "args", Reason: "select needs at least one option"}
		}
		return action.Select{Base: base, Options: append([]string(nil), req.Args...)}, nil
	case "hover":
		return action.Hover{Base: base}, nil
	case "setInputFiles":
		return action.SetInputFiles{Base: base, Files: append([]string(nil), req.Args...)}, nil
	case "":
		return nil, &ValidationError{Field: "action", Reason: "must not be empty"}
	default:
		return nil, &ValidationError{Field: "action", Reason: "unsupported action " + req.Action, Err: ErrUnsupported}
	}
}
