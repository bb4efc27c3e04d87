// Package session owns one recording session: the action stream, the
// generated sources, the call log and the session state. All of it is
// mutated on a single loop goroutine; browser callbacks, control-surface
// events and command completions reach it by posting closures.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recorder/internal/action"
	"recorder/internal/browser"
	"recorder/internal/calllog"
	"recorder/internal/codegen"
	"recorder/internal/collapse"
	"recorder/internal/executor"
	"recorder/internal/logging"
	"recorder/internal/protocol"
)

// DefaultSignalThreshold is how long after an action a navigation still
// counts as caused by it.
const DefaultSignalThreshold = 5 * time.Second

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// ModeSetter receives mode changes for the page instrumentation.
type ModeSetter interface {
	SetMode(mode string)
}

// Config holds everything a session needs besides its pages and surface.
type Config struct {
	Generators []codegen.Generator
	// PrimaryID names the generator whose text is mirrored to OutputPath.
	PrimaryID string
	// SelectedID is the source shown first; it defaults to PrimaryID.
	SelectedID string
	Options    codegen.Options
	Mode       protocol.Mode

	OutputPath  string
	OutputDelay time.Duration
	UserSources []string

	// Programmatic replaces source regeneration with one ActionEvent per
	// stream mutation, delivered to OnActionEvent.
	Programmatic  bool
	OnActionEvent func(codegen.ActionEvent)

	ClickWindow     time.Duration
	SignalThreshold time.Duration
	CommandTimeout  time.Duration
	Instrumentation ModeSetter
	Audit           *calllog.Store
}

// State is what a newly connected control surface is sent.
type State struct {
	Mode       protocol.Mode
	Paused     bool
	Sources    []codegen.Source
	SelectedID string
	PageURL    string
	CallLogs   []calllog.Entry
}

// Session is one recording session. Create it with New and release it
// with Close.
type Session struct {
	id      string
	cfg     Config
	pages   browser.PageSource
	surface protocol.Surface

	adapter      *codegen.Adapter
	collapser    collapse.Collapser
	programmatic *codegen.Programmatic
	output       *codegen.OutputWriter
	users        *codegen.UserSources
	log          *calllog.Log
	exec         *executor.Executor

	// Owned by the loop.
	mode        protocol.Mode
	paused      bool
	stepping    bool
	stream      []action.Record
	sources     []codegen.Source
	userSources []codegen.Source
	selectedID  string
	opts        codegen.Options
	pageURL     string

	ops      chan func()
	logDirty chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	closed   sync.Once

	// cmdMu orders commands.Add against Close.
	cmdMu    sync.Mutex
	commands sync.WaitGroup
}

// New starts a session over pages, pushing state to surface.
func New(cfg Config, pages browser.PageSource, surface protocol.Surface) (*Session, error) {
	if len(cfg.Generators) == 0 {
		cfg.Generators = codegen.Builtin()
	}
	if cfg.PrimaryID == "" {
		cfg.PrimaryID = cfg.Generators[0].ID()
	}
	primary, ok := codegen.Lookup(cfg.Generators, cfg.PrimaryID)
	if !ok {
		return nil, fmt.Errorf("unknown primary generator %q", cfg.PrimaryID)
	}
	if cfg.SelectedID == "" {
		cfg.SelectedID = cfg.PrimaryID
	}
	if cfg.SignalThreshold <= 0 {
		cfg.SignalThreshold = DefaultSignalThreshold
	}
	if cfg.Mode == "" {
		cfg.Mode = protocol.ModeRecording
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		pages:      pages,
		surface:    surface,
		adapter:    codegen.NewAdapter(cfg.Generators, cfg.PrimaryID),
		collapser:  collapse.New(cfg.ClickWindow),
		mode:       cfg.Mode,
		selectedID: cfg.SelectedID,
		opts:       cfg.Options,
		ops:        make(chan func(), 256),
		logDirty:   make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		loopDone:   make(chan struct{}),
	}

	logOpts := []calllog.Option{calllog.OnChange(s.callLogChanged)}
	if cfg.Audit != nil {
		logOpts = append(logOpts, calllog.OnTerminal(s.audit))
	}
	s.log = calllog.New(s.id, logOpts...)
	s.exec = executor.New(pages, s.log,
		executor.WithTimeout(cfg.CommandTimeout),
		executor.WithRecorder(s.recordSynthetic),
	)

	if cfg.Programmatic {
		gen, ok := codegen.Lookup(cfg.Generators, cfg.SelectedID)
		if !ok {
			gen = primary
		}
		s.programmatic = codegen.NewProgrammatic(gen, s.collapser)
	}
	if cfg.OutputPath != "" {
		s.output = codegen.NewOutputWriter(cfg.OutputPath, cfg.OutputDelay)
	}
	if len(cfg.UserSources) > 0 {
		users, err := codegen.NewUserSources(cfg.UserSources, s.userSourcesChanged)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("watching user sources: %w", err)
		}
		s.users = users
		s.userSources = users.Sources()
		if err := users.Start(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("watching user sources: %w", err)
		}
	}
	if cfg.Instrumentation != nil {
		cfg.Instrumentation.SetMode(string(s.mode))
	}

	metricSessionsActive.Inc()
	go s.loop()

	s.post(func() {
		if s.programmatic == nil {
			s.regenerate()
		}
		s.deliver(protocol.MethodSetMode, s.surface.SetMode(s.mode))
	})
	logging.Session("session %s started (primary %s, mode %s)", s.id, cfg.PrimaryID, s.mode)
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Executor returns the session's command executor.
func (s *Session) Executor() *executor.Executor { return s.exec }

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			s.safely(op)
		case <-s.logDirty:
			s.deliver(protocol.MethodUpdateCallLogs, s.surface.UpdateCallLogs(s.log.Snapshot()))
		}
	}
}

func (s *Session) safely(op func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.SessionError("session %s: operation panicked: %v", s.id, r)
		}
	}()
	op()
}

// post queues op on the loop. After Close it drops op and returns false.
func (s *Session) post(op func()) bool {
	select {
	case <-s.ctx.Done():
		logging.SessionDebug("session %s: dropping late update", s.id)
		return false
	default:
	}
	select {
	case s.ops <- op:
		return true
	case <-s.ctx.Done():
		logging.SessionDebug("session %s: dropping late update", s.id)
		return false
	}
}

// do runs op on the loop and waits for it.
func (s *Session) do(op func()) error {
	done := make(chan struct{})
	if !s.post(func() { defer close(done); op() }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return ErrClosed
	}
}

// deliver logs and swallows a failed push.
func (s *Session) deliver(method string, err error) {
	if err != nil {
		logging.SessionWarn("session %s: %s delivery failed: %v", s.id, method, err)
	}
}

func (s *Session) callLogChanged() {
	select {
	case s.logDirty <- struct{}{}:
	default:
	}
}

func (s *Session) audit(e calllog.Entry) {
	if e.Kind != calllog.KindCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cfg.Audit.Record(ctx, e); err != nil {
		logging.SessionWarn("session %s: audit %s: %v", s.id, e.ID, err)
	}
}

func (s *Session) userSourcesChanged(sources []codegen.Source) {
	s.post(func() {
		s.userSources = sources
		s.publishSources()
	})
}

// State returns a snapshot for a newly connected surface.
func (s *Session) State() (State, error) {
	var st State
	err := s.do(func() {
		st = State{
			Mode:       s.mode,
			Paused:     s.paused,
			Sources:    append([]codegen.Source(nil), s.allSources()...),
			SelectedID: s.selectedID,
			PageURL:    s.pageURL,
			CallLogs:   s.log.Snapshot(),
		}
	})
	return st, err
}

// Stream returns a copy of the raw action stream.
func (s *Session) Stream() ([]action.Record, error) {
	var out []action.Record
	err := s.do(func() { out = append([]action.Record(nil), s.stream...) })
	return out, err
}

// CallLog returns the current call-log snapshot.
func (s *Session) CallLog() []calllog.Entry { return s.log.Snapshot() }

// Close stops the loop, waits for in-flight commands, flushes the output
// target and stops watching user sources. It is safe to call twice.
func (s *Session) Close() error {
	var err error
	s.closed.Do(func() {
		s.cmdMu.Lock()
		s.cancel()
		s.cmdMu.Unlock()
		<-s.loopDone
		s.commands.Wait()
		if s.users != nil {
			s.users.Stop()
		}
		if s.output != nil {
			err = s.output.Close()
		}
		metricSessionsActive.Dec()
		logging.Session("session %s closed", s.id)
	})
	return err
}
