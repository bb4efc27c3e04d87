// Package browsertest provides in-memory implementations of browser.Page
// and browser.Frame for tests. Elements are keyed by the exact selector
// string used to reach them; a selector with no element blocks until the
// caller's context is done, like a real page would.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recorder/internal/action"
	"recorder/internal/browser"
)

// Element is the observable state of one fake element.
type Element struct {
	Text     string
	Value    string
	Attrs    map[string]string
	Hidden   bool
	Disabled bool
	Checked  bool
	Box      browser.Box
	// Matches is how many elements the selector matches; zero means one.
	Matches int
}

// Frame is a fake document.
type Frame struct {
	desc action.FrameDescriptor

	mu        sync.Mutex
	elements  map[string]*Element
	performed []action.Action

	// Delay is slept before every gesture or extraction, honouring ctx.
	Delay time.Duration
	// Err, when set, is returned by every gesture after the element is found.
	Err error
	// OnPerform runs after a gesture succeeds.
	OnPerform func(a action.Action)
}

func newFrame(desc action.FrameDescriptor) *Frame {
	return &Frame{desc: desc, elements: make(map[string]*Element)}
}

// Set places an element under sel.
func (f *Frame) Set(sel string, el Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[sel] = &el
}

// Remove deletes the element under sel.
func (f *Frame) Remove(sel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, sel)
}

// Element returns a copy of the element under sel.
func (f *Frame) Element(sel string) (Element, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[sel]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// Performed returns the gestures run so far.
func (f *Frame) Performed() []action.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]action.Action(nil), f.performed...)
}

func (f *Frame) Descriptor() action.FrameDescriptor { return f.desc }

func (f *Frame) Count(_ context.Context, sel string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[sel]
	switch {
	case !ok:
		return 0, nil
	case el.Matches > 0:
		return el.Matches, nil
	default:
		return 1, nil
	}
}

func (f *Frame) wait(ctx context.Context, sel string) (*Element, error) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		f.mu.Lock()
		el, ok := f.elements[sel]
		f.mu.Unlock()
		if ok {
			return el, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", sel, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (f *Frame) sleep(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *Frame) Perform(ctx context.Context, a action.Action) error {
	switch a.(type) {
	case action.Click, action.Fill, action.Press, action.Check, action.Uncheck,
		action.Select, action.Hover, action.SetInputFiles:
	default:
		return fmt.Errorf("%w: %s", browser.ErrUnsupportedAction, a.Kind())
	}
	el, err := f.wait(ctx, a.Common().Selector)
	if err != nil {
		return err
	}
	if err := f.sleep(ctx); err != nil {
		return err
	}
	if f.Err != nil {
		return f.Err
	}

	f.mu.Lock()
	switch a := a.(type) {
	case action.Fill:
		el.Value = a.Text
	case action.Check:
		el.Checked = true
	case action.Uncheck:
		el.Checked = false
	case action.Select:
		if len(a.Options) > 0 {
			el.Value = a.Options[0]
		}
	}
	f.performed = append(f.performed, a)
	hook := f.OnPerform
	f.mu.Unlock()

	if hook != nil {
		hook(a)
	}
	return nil
}

func (f *Frame) Extract(ctx context.Context, sel string, kind action.Extraction, args []string) (any, error) {
	switch kind {
	case action.ExtractCount:
		return f.Count(ctx, sel)
	case action.ExtractIsVisible:
		el, ok := f.Element(sel)
		return ok && !el.Hidden, nil
	}
	el, err := f.wait(ctx, sel)
	if err != nil {
		return nil, err
	}
	if err := f.sleep(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case action.ExtractInnerText, action.ExtractTextContent:
		return el.Text, nil
	case action.ExtractGetAttribute:
		if len(args) == 0 {
			return nil, fmt.Errorf("getAttribute needs an attribute name")
		}
		v, ok := el.Attrs[args[0]]
		if !ok {
			return nil, nil
		}
		return v, nil
	case action.ExtractInputValue:
		return el.Value, nil
	case action.ExtractIsEnabled:
		return !el.Disabled, nil
	case action.ExtractIsChecked:
		return el.Checked, nil
	case action.ExtractBoundingBox:
		return el.Box, nil
	default:
		return nil, fmt.Errorf("unsupported extraction %s", kind)
	}
}

// Page is a fake tab.
type Page struct {
	id, alias string

	mu         sync.Mutex
	url        string
	title      string
	frames     []*Frame
	keys       []string
	highlights []string
	reloads    int
	// NavigateErr, when set, fails every navigation.
	NavigateErr error
}

// NewPage returns a page with an empty main frame.
func NewPage(id, alias, url string) *Page {
	p := &Page{id: id, alias: alias, url: url}
	p.frames = []*Frame{newFrame(action.FrameDescriptor{PageID: id, PageAlias: alias})}
	return p
}

// Main returns the fake main frame.
func (p *Page) Main() *Frame { return p.frames[0] }

// AddFrame adds a nested frame reached through path.
func (p *Page) AddFrame(path ...string) *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := newFrame(action.FrameDescriptor{PageID: p.id, PageAlias: p.alias, FramePath: path})
	p.frames = append(p.frames, f)
	return f
}

// SetTitle sets what Title returns.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Keys returns the keys sent with Press.
func (p *Page) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// Highlights returns the selectors passed to Highlight.
func (p *Page) Highlights() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.highlights...)
}

// Reloads returns how often Reload was called.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Page) ID() string    { return p.id }
func (p *Page) Alias() string { return p.alias }

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) MainFrame() browser.Frame { return p.frames[0] }

func (p *Page) Frames(context.Context) ([]browser.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Frame, len(p.frames))
	for i, f := range p.frames {
		out[i] = f
	}
	return out, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.url = url
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *Page) Press(_ context.Context, key string, modifiers int) error {
	if _, err := browser.Key(key); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *Page) Highlight(_ context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.highlights = append(p.highlights, sel)
	return nil
}

// Context is a fake browser context holding pages in insertion order.
type Context struct {
	mu    sync.Mutex
	pages []*Page
	mutes int
	muted int
}

// NewContext returns a context holding pages.
func NewContext(pages ...*Page) *Context {
	return &Context{pages: pages}
}

// Add appends a page.
func (c *Context) Add(p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = append(c.pages, p)
}

// Pages implements browser.PageSource.
func (c *Context) Pages() []browser.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]browser.Page, len(c.pages))
	for i, p := range c.pages {
		out[i] = p
	}
	return out
}

// Mute implements browser.Muter by counting calls.
func (c *Context) Mute() func() {
	c.mu.Lock()
	c.mutes++
	c.muted++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.muted--
			c.mu.Unlock()
		})
	}
}

// Mutes returns how many times Mute was called.
func (c *Context) Mutes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutes
}

// Muted reports whether a Mute is still held.
func (c *Context) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted > 0
}

var (
	_ browser.Muter      = (*Context)(nil)
	_ browser.Page       = (*Page)(nil)
	_ browser.Frame      = (*Frame)(nil)
	_ browser.PageSource = (*Context)(nil)
)
