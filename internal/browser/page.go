package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"recorder/internal/action"
	"recorder/internal/logging"
	"recorder/internal/selector"
)

const waitPoll = 100 * time.Millisecond

// rodPage is a tab tracked by a Manager.
type rodPage struct {
	mgr   *Manager
	page  *rod.Page
	id    string
	alias string

	mu  sync.RWMutex
	url string
}

func (p *rodPage) ID() string    { return p.id }
func (p *rodPage) Alias() string { return p.alias }

func (p *rodPage) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *rodPage) setURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) MainFrame() Frame {
	return &rodFrame{page: p.page, desc: action.FrameDescriptor{PageID: p.id, PageAlias: p.alias}}
}

// Frames walks nested iframes depth first. Each hop is identified by the
// iframe's id or name when it has one, otherwise by its position.
func (p *rodPage) Frames(ctx context.Context) ([]Frame, error) {
	main := p.MainFrame().(*rodFrame)
	out := []Frame{main}
	if err := p.collectFrames(ctx, main, 0, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (p *rodPage) collectFrames(ctx context.Context, parent *rodFrame, depth int, out *[]Frame) error {
	if depth >= 3 {
		return nil
	}
	iframes, err := parent.page.Context(ctx).Elements("iframe")
	if err != nil {
		return err
	}
	for i, el := range iframes {
		child, err := el.Frame()
		if err != nil {
			continue
		}
		hop := selector.Nth("iframe", i)
		if id, err := el.Attribute("id"); err == nil && id != nil && *id != "" {
			hop = "#" + *id
		} else if name, err := el.Attribute("name"); err == nil && name != nil && *name != "" {
			hop = fmt.Sprintf("iframe[name=%s]", selector.Quote(*name))
		}
		desc := parent.desc
		desc.FramePath = append(append([]string(nil), parent.desc.FramePath...), hop)
		f := &rodFrame{page: child, desc: desc}
		*out = append(*out, f)
		if err := p.collectFrames(ctx, f, depth+1, out); err != nil {
			logging.BrowserDebug("skipping frames below %v: %v", desc.FramePath, err)
		}
	}
	return nil
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return pg.WaitLoad()
}

func (p *rodPage) Reload(ctx context.Context) error {
	return p.page.Context(ctx).Reload()
}

func (p *rodPage) Press(ctx context.Context, key string, modifiers int) error {
	return pressKey(p.page.Context(ctx), key, modifiers)
}

func (p *rodPage) Highlight(ctx context.Context, sel string) error {
	_, err := p.page.Context(ctx).Eval(highlightJS, sel)
	return err
}

func pressKey(pg *rod.Page, key string, modifiers int) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	mods := ModifierKeys(modifiers)
	return pg.KeyActions().Press(mods...).Type(k).Release(mods...).Do()
}

// rodFrame resolves internal selectors with resolverJS inside one document.
type rodFrame struct {
	page *rod.Page
	desc action.FrameDescriptor
}

func (f *rodFrame) Descriptor() action.FrameDescriptor { return f.desc }

func (f *rodFrame) query(ctx context.Context, sel string) (rod.Elements, error) {
	return f.page.Context(ctx).ElementsByJS(rod.Eval(resolverJS, sel))
}

func (f *rodFrame) Count(ctx context.Context, sel string) (int, error) {
	els, err := f.query(ctx, sel)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// waitFirst polls until sel matches or ctx is done.
func (f *rodFrame) waitFirst(ctx context.Context, sel string) (*rod.Element, error) {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()
	for {
		els, err := f.query(ctx, sel)
		if err == nil && len(els) > 0 {
			return els[0].Context(ctx), nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("waiting for %s: %w", sel, ctx.Err())
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", sel, ctx.Err())
		case <-ticker.C:
		}
	}
}

func mouseButton(name string) proto.InputMouseButton {
	switch name {
	case "right":
		return proto.InputMouseButtonRight
	case "middle":
		return proto.InputMouseButtonMiddle
	default:
		return proto.InputMouseButtonLeft
	}
}

func (f *rodFrame) Perform(ctx context.Context, a action.Action) error {
	switch a.(type) {
	case action.Click, action.Fill, action.Press, action.Check, action.Uncheck,
		action.Select, action.Hover, action.SetInputFiles:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, a.Kind())
	}

	el, err := f.waitFirst(ctx, a.Common().Selector)
	if err != nil {
		return err
	}
	pg := f.page.Context(ctx)

	switch a := a.(type) {
	case action.Click:
		count := a.ClickCount
		if count < 1 {
			count = 1
		}
		mods := ModifierKeys(a.Modifiers)
		if len(mods) > 0 {
			if err := pg.KeyActions().Press(mods...).Do(); err != nil {
				return err
			}
			defer func() { _ = pg.KeyActions().Release(mods...).Do() }()
		}
		return el.Click(mouseButton(a.Button), count)
	case action.Fill:
		if err := el.SelectAllText(); err != nil {
			return err
		}
		if a.Text == "" {
			return pg.KeyActions().Type(input.Backspace).Do()
		}
		return el.Input(a.Text)
	case action.Press:
		if err := el.Focus(); err != nil {
			return err
		}
		return pressKey(pg, a.Key, a.Modifiers)
	case action.Check:
		return setChecked(el, true)
	case action.Uncheck:
		return setChecked(el, false)
	case action.Select:
		return el.Select(a.Options, true, rod.SelectorTypeText)
	case action.Hover:
		return el.Hover()
	case action.SetInputFiles:
		return el.SetFiles(a.Files)
	}
	return nil
}

func setChecked(el *rod.Element, want bool) error {
	prop, err := el.Property("checked")
	if err != nil {
		return err
	}
	if prop.Bool() == want {
		return nil
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (f *rodFrame) Extract(ctx context.Context, sel string, kind action.Extraction, args []string) (any, error) {
	switch kind {
	case action.ExtractCount:
		return f.Count(ctx, sel)
	case action.ExtractIsVisible:
		els, err := f.query(ctx, sel)
		if err != nil || len(els) == 0 {
			return false, err
		}
		return els[0].Visible()
	}

	el, err := f.waitFirst(ctx, sel)
	if err != nil {
		return nil, err
	}
	switch kind {
	case action.ExtractInnerText:
		return el.Text()
	case action.ExtractTextContent:
		prop, err := el.Property("textContent")
		if err != nil {
			return nil, err
		}
		return prop.Str(), nil
	case action.ExtractGetAttribute:
		if len(args) == 0 {
			return nil, fmt.Errorf("getAttribute needs an attribute name")
		}
		v, err := el.Attribute(args[0])
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case action.ExtractInputValue:
		prop, err := el.Property("value")
		if err != nil {
			return nil, err
		}
		return prop.Str(), nil
	case action.ExtractIsEnabled:
		disabled, err := el.Disabled()
		if err != nil {
			return nil, err
		}
		return !disabled, nil
	case action.ExtractIsChecked:
		prop, err := el.Property("checked")
		if err != nil {
			return nil, err
		}
		return prop.Bool(), nil
	case action.ExtractBoundingBox:
		shape, err := el.Shape()
		if err != nil {
			return nil, err
		}
		box := shape.Box()
		if box == nil {
			return nil, nil
		}
		return Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
	default:
		return nil, fmt.Errorf("unsupported extraction %s", kind)
	}
}
