package sandbox

import (
	"context"
	"fmt"

	"recorder/internal/action"
	"recorder/internal/browser"
	"recorder/internal/selector"
)

// Page is the only value operator code receives. Every call is bound to
// the deadline of the command that runs the code.
type Page struct {
	ctx  context.Context
	page browser.Page
}

func newPage(ctx context.Context, p browser.Page) *Page {
	return &Page{ctx: ctx, page: p}
}

// Locator scopes subsequent calls to elements matching sel.
func (p *Page) Locator(sel string) *Locator { return &Locator{page: p, sel: sel} }

// GetByRole matches elements by ARIA role and case-insensitive name.
func (p *Page) GetByRole(role, name string) *Locator {
	return p.Locator(selector.Role(role, name, false))
}

// GetByText matches the innermost elements containing text.
func (p *Page) GetByText(text string) *Locator {
	return p.Locator(selector.Text(text, false))
}

func (p *Page) GetByPlaceholder(text string) *Locator {
	return p.Locator(selector.Placeholder(text))
}

func (p *Page) GetByTestID(id string) *Locator {
	return p.Locator(selector.TestID(id))
}

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) Title() (string, error) { return p.page.Title(p.ctx) }

func (p *Page) Goto(url string) error { return p.page.Navigate(p.ctx, url) }

func (p *Page) Reload() error { return p.page.Reload(p.ctx) }

// Press sends a shortcut such as "Control+A" to the focused element.
func (p *Page) Press(shortcut string) error {
	key, mods := browser.ParseShortcut(shortcut)
	return p.page.Press(p.ctx, key, mods)
}

// frameFor picks the first frame where sel matches, else the main frame.
func (p *Page) frameFor(sel string) browser.Frame {
	frames, err := p.page.Frames(p.ctx)
	if err == nil {
		for _, f := range frames {
			if n, err := f.Count(p.ctx, sel); err == nil && n > 0 {
				return f
			}
		}
	}
	return p.page.MainFrame()
}

// Locator is a lazily resolved element reference.
type Locator struct {
	page *Page
	sel  string
}

// Selector returns the internal selector the locator resolves.
func (l *Locator) Selector() string { return l.sel }

func (l *Locator) Locator(sel string) *Locator {
	return &Locator{page: l.page, sel: selector.Chain(l.sel, sel)}
}

func (l *Locator) First() *Locator { return l.Nth(0) }

func (l *Locator) Nth(i int) *Locator {
	return &Locator{page: l.page, sel: selector.Nth(l.sel, i)}
}

func (l *Locator) perform(a action.Action) error {
	return l.page.frameFor(l.sel).Perform(l.page.ctx, a)
}

func (l *Locator) base() action.Base { return action.Base{Selector: l.sel} }

func (l *Locator) Click() error {
	return l.perform(action.Click{Base: l.base(), Button: "left", ClickCount: 1})
}

func (l *Locator) DblClick() error {
	return l.perform(action.Click{Base: l.base(), Button: "left", ClickCount: 2})
}

func (l *Locator) Fill(text string) error {
	return l.perform(action.Fill{Base: l.base(), Text: text})
}

func (l *Locator) Press(shortcut string) error {
	key, mods := browser.ParseShortcut(shortcut)
	return l.perform(action.Press{Base: l.base(), Key: key, Modifiers: mods})
}

func (l *Locator) Check() error   { return l.perform(action.Check{Base: l.base()}) }
func (l *Locator) Uncheck() error { return l.perform(action.Uncheck{Base: l.base()}) }
func (l *Locator) Hover() error   { return l.perform(action.Hover{Base: l.base()}) }

func (l *Locator) SelectOption(values ...string) error {
	return l.perform(action.Select{Base: l.base(), Options: values})
}

func (l *Locator) extract(kind action.Extraction, args ...string) (any, error) {
	return l.page.frameFor(l.sel).Extract(l.page.ctx, l.sel, kind, args)
}

func (l *Locator) InnerText() (string, error) {
	v, err := l.extract(action.ExtractInnerText)
	return asString(v), err
}

func (l *Locator) TextContent() (string, error) {
	v, err := l.extract(action.ExtractTextContent)
	return asString(v), err
}

// GetAttribute returns "" when the attribute is absent.
func (l *Locator) GetAttribute(name string) (string, error) {
	v, err := l.extract(action.ExtractGetAttribute, name)
	return asString(v), err
}

func (l *Locator) IsVisible() (bool, error) {
	v, err := l.extract(action.ExtractIsVisible)
	b, _ := v.(bool)
	return b, err
}

func (l *Locator) IsEnabled() (bool, error) {
	v, err := l.extract(action.ExtractIsEnabled)
	b, _ := v.(bool)
	return b, err
}

func (l *Locator) IsChecked() (bool, error) {
	v, err := l.extract(action.ExtractIsChecked)
	b, _ := v.(bool)
	return b, err
}

func (l *Locator) Count() (int, error) {
	v, err := l.extract(action.ExtractCount)
	n, _ := v.(int)
	return n, err
}

func (l *Locator) BoundingBox() (browser.Box, error) {
	v, err := l.extract(action.ExtractBoundingBox)
	b, _ := v.(browser.Box)
	return b, err
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Result adapts any call expression to Run's return values, so both
// page.URL() and page.Locator("h1").InnerText() can be the whole program.
func Result(vals ...any) (any, error) {
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := vals[0].(error); ok {
			return nil, err
		}
		return normalize(vals[0]), nil
	default:
		last := vals[len(vals)-1]
		if err, ok := last.(error); ok {
			return normalize(vals[0]), err
		}
		if last == nil && len(vals) == 2 {
			return normalize(vals[0]), nil
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = normalize(v)
		}
		return out, nil
	}
}

func normalize(v any) any {
	if l, ok := v.(*Locator); ok {
		return map[string]string{"selector": l.sel}
	}
	return v
}

func (l *Locator) String() string { return fmt.Sprintf("Locator(%s)", l.sel) }
