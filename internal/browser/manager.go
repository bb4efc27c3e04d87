package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"recorder/internal/action"
	"recorder/internal/logging"
)

// Config holds browser configuration.
type Config struct {
	// DebuggerURL connects to a running Chrome instead of launching one.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch is a Chrome binary followed by extra flags.
	Launch            []string      `yaml:"launch"`
	Headless          bool          `yaml:"headless"`
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:     1280,
		ViewportHeight:    720,
		NavigationTimeout: 30 * time.Second,
		PollInterval:      200 * time.Millisecond,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 200 * time.Millisecond
	}
	return c.PollInterval
}

// Manager owns the Chrome connection and the pages of the recorded
// context.
type Manager struct {
	cfg Config

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	pages      []*rodPage
	byTarget   map[proto.TargetTargetID]*rodPage
	opened     int
	observer   Observer
	mode       string

	// muted counts active Mute calls; muteGen changes on every mute and
	// unmute so a poll that straddles one drops what it drained.
	muted   atomic.Int32
	muteGen atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a Manager that is not yet connected.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		byTarget: make(map[proto.TargetTargetID]*rodPage),
		observer: nopObserver{},
		mode:     "none",
	}
}

// SetObserver routes page events to o. It must be called before pages are
// opened to see every event.
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	m.observer = o
}

// Start connects to an existing Chrome or launches a new one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL, err := m.resolveControlURL()
	if err != nil {
		return err
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	b := rod.New().ControlURL(controlURL).Context(m.ctx)
	if err := b.Connect(); err != nil {
		m.cancel()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	m.browser = b
	m.controlURL = controlURL
	logging.Browser("connected to %s", controlURL)

	m.watchTargets(b)
	return nil
}

func (m *Manager) resolveControlURL() (string, error) {
	if m.cfg.DebuggerURL != "" {
		return m.cfg.DebuggerURL, nil
	}
	if len(m.cfg.Launch) > 0 {
		l := launcher.New().Bin(m.cfg.Launch[0]).Headless(m.cfg.Headless)
		for _, raw := range m.cfg.Launch[1:] {
			name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return "", fmt.Errorf("launch chrome: %w", err)
		}
		return u, nil
	}
	u, err := launcher.New().Headless(m.cfg.Headless).Launch()
	if err != nil {
		return "", fmt.Errorf("no debugger_url and failed to launch: %w", err)
	}
	return u, nil
}

// watchTargets adopts popups and notices closed tabs.
func (m *Manager) watchTargets(b *rod.Browser) {
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		logging.BrowserWarn("target discovery unavailable: %v", err)
		return
	}
	wait := b.EachEvent(
		func(ev *proto.TargetTargetCreated) {
			info := ev.TargetInfo
			if info.Type != proto.TargetTargetInfoTypePage || info.OpenerID == "" {
				return
			}
			pg, err := b.PageFromTarget(info.TargetID)
			if err != nil {
				logging.BrowserWarn("attach popup %s: %v", info.TargetID, err)
				return
			}
			m.mu.RLock()
			opener := m.byTarget[info.OpenerID]
			m.mu.RUnlock()
			m.adopt(pg, opener)
		},
		func(ev *proto.TargetTargetDestroyed) {
			m.forget(ev.TargetID)
		},
	)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		wait()
	}()
}

// NewPage opens a tab and navigates it to url unless url is empty.
func (m *Manager) NewPage(ctx context.Context, url string) (Page, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	pg, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}).Call(pg); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	p := m.adopt(pg, nil)
	if url != "" {
		navCtx, cancel := context.WithTimeout(ctx, m.cfg.navigationTimeout())
		defer cancel()
		if err := p.Navigate(navCtx, url); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (m *Manager) adopt(pg *rod.Page, opener *rodPage) *rodPage {
	m.mu.Lock()
	if existing, ok := m.byTarget[pg.TargetID]; ok {
		m.mu.Unlock()
		return existing
	}
	alias := "page"
	if m.opened > 0 {
		alias = fmt.Sprintf("page%d", m.opened)
	}
	m.opened++
	p := &rodPage{mgr: m, page: pg, id: string(pg.TargetID), alias: alias}
	if info, err := pg.Info(); err == nil {
		p.url = info.URL
	}
	m.pages = append(m.pages, p)
	m.byTarget[pg.TargetID] = p
	ctx := m.ctx
	obs := m.observer
	m.mu.Unlock()

	logging.BrowserDebug("adopted %s as %s", pg.TargetID, alias)
	if opener != nil {
		obs.PageOpened(p, opener)
	} else {
		obs.PageOpened(p, nil)
	}
	m.instrument(ctx, p)
	return p
}

func (m *Manager) forget(id proto.TargetTargetID) {
	m.mu.Lock()
	p, ok := m.byTarget[id]
	if ok {
		delete(m.byTarget, id)
		for i, q := range m.pages {
			if q == p {
				m.pages = append(m.pages[:i], m.pages[i+1:]...)
				break
			}
		}
	}
	obs := m.observer
	m.mu.Unlock()
	if ok {
		obs.PageClosed(p)
	}
}

// Pages returns the tracked pages in insertion order.
func (m *Manager) Pages() []Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Page, len(m.pages))
	for i, p := range m.pages {
		out[i] = p
	}
	return out
}

// SetMode is forwarded to the page hooks on their next poll.
func (m *Manager) SetMode(mode string) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *Manager) currentMode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// ControlURL returns the DevTools WebSocket URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// Shutdown stops instrumentation, closes tracked pages and the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	b := m.browser
	pages := m.pages
	m.browser = nil
	m.controlURL = ""
	m.pages = nil
	m.byTarget = make(map[proto.TargetTargetID]*rodPage)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.BrowserWarn("shutdown: instrumentation did not stop: %v", ctx.Err())
	}

	for _, p := range pages {
		_ = p.page.Close()
	}
	if b == nil {
		return nil
	}
	return b.Close()
}

// discardTimeout bounds the drain run when a Mute is released.
const discardTimeout = 2 * time.Second

var _ Muter = (*Manager)(nil)

// Mute implements Muter. Commands hold it while they drive the page so
// the trusted input events they cause are not recorded a second time.
func (m *Manager) Mute() func() {
	m.muted.Add(1)
	m.muteGen.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			m.discardGestures()
			m.muteGen.Add(1)
			m.muted.Add(-1)
		})
	}
}

func (m *Manager) gesturesMuted(gen uint64) bool {
	return m.muted.Load() > 0 || m.muteGen.Load() != gen
}

// discardGestures empties the gesture buffer of every tracked frame.
func (m *Manager) discardGestures() {
	m.mu.RLock()
	base := m.ctx
	pages := append([]*rodPage(nil), m.pages...)
	m.mu.RUnlock()
	if base == nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, discardTimeout)
	defer cancel()
	for _, p := range pages {
		frames, _ := p.Frames(ctx)
		for _, f := range frames {
			rf := f.(*rodFrame)
			if _, err := rf.page.Context(ctx).Eval(drainJS); err != nil && ctx.Err() == nil {
				logging.BrowserDebug("discard %s %v: %v", p.alias, rf.desc.FramePath, err)
			}
		}
	}
}

type nopObserver struct{}

func (nopObserver) ActionPerformed(action.Record)     {}
func (nopObserver) ElementPicked(Page, string, bool)  {}
func (nopObserver) Navigated(Page, string, time.Time) {}
func (nopObserver) PageOpened(Page, Page)             {}
func (nopObserver) PageClosed(Page)                   {}
