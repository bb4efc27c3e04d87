// Package action defines the canonical representation of a captured or
// synthesized browser action, the frame it happened in, and the signals
// that were observed alongside it.
package action

import "strings"

// Kind names an action variant. It is also the "name" discriminator of the
// JSON form.
type Kind string

const (
	KindOpenPage       Kind = "openPage"
	KindClosePage      Kind = "closePage"
	KindNavigate       Kind = "navigate"
	KindClick          Kind = "click"
	KindFill           Kind = "fill"
	KindPress          Kind = "press"
	KindCheck          Kind = "check"
	KindUncheck        Kind = "uncheck"
	KindSelect         Kind = "select"
	KindHover          Kind = "hover"
	KindSetInputFiles  Kind = "setInputFiles"
	KindAssertText     Kind = "assertText"
	KindAssertValue    Kind = "assertValue"
	KindAssertChecked  Kind = "assertChecked"
	KindAssertVisible  Kind = "assertVisible"
	KindAssertSnapshot Kind = "assertSnapshot"
	KindExecuteCode    Kind = "execute_code"

	extractPrefix = "extract_"
)

// ExtractKind returns the Kind of an extraction action for the given query.
func ExtractKind(e Extraction) Kind {
	return Kind(extractPrefix + string(e))
}

// IsExtract reports whether k is an extract_<kind> variant.
func (k Kind) IsExtract() bool {
	return strings.HasPrefix(string(k), extractPrefix)
}

// Keyboard modifier bits carried by click and press actions.
const (
	ModifierAlt     = 1
	ModifierControl = 2
	ModifierMeta    = 4
	ModifierShift   = 8
)

// Action is the closed union of action variants. Every variant embeds Base.
type Action interface {
	Kind() Kind
	Common() Base
	withBase(Base) Action
}

// Base holds the fields shared by every variant.
type Base struct {
	Selector string   `json:"selector,omitempty"`
	Signals  []Signal `json:"signals"`
}

// Common returns the shared fields.
func (b Base) Common() Base { return b }

// Point is a click position relative to the element's top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type OpenPage struct {
	Base
	URL string `json:"url"`
}

type ClosePage struct {
	Base
}

type Navigate struct {
	Base
	URL string `json:"url"`
}

type Click struct {
	Base
	Button     string `json:"button"`
	Modifiers  int    `json:"modifiers"`
	ClickCount int    `json:"clickCount"`
	Position   *Point `json:"position,omitempty"`
}

type Fill struct {
	Base
	Text string `json:"text"`
}

type Press struct {
	Base
	Key       string `json:"key"`
	Modifiers int    `json:"modifiers"`
}

type Check struct {
	Base
}

type Uncheck struct {
	Base
}

type Select struct {
	Base
	Options []string `json:"options"`
}

type Hover struct {
	Base
}

type SetInputFiles struct {
	Base
	Files []string `json:"files"`
}

type AssertText struct {
	Base
	Text      string `json:"text"`
	Substring bool   `json:"substring"`
}

type AssertValue struct {
	Base
	Value string `json:"value"`
}

type AssertChecked struct {
	Base
	Checked bool `json:"checked"`
}

type AssertVisible struct {
	Base
}

type AssertSnapshot struct {
	Base
	Snapshot string `json:"snapshot"`
}

// Extract is a read-only query issued from the control surface.
type Extract struct {
	Base
	Extraction Extraction `json:"extraction"`
	Args       []string   `json:"args,omitempty"`
}

// ExecuteCode is the descriptor-only record of an arbitrary expression.
type ExecuteCode struct {
	Base
	Code string `json:"code"`
}

func (OpenPage) Kind() Kind       { return KindOpenPage }
func (ClosePage) Kind() Kind      { return KindClosePage }
func (Navigate) Kind() Kind       { return KindNavigate }
func (Click) Kind() Kind          { return KindClick }
func (Fill) Kind() Kind           { return KindFill }
func (Press) Kind() Kind          { return KindPress }
func (Check) Kind() Kind          { return KindCheck }
func (Uncheck) Kind() Kind        { return KindUncheck }
func (Select) Kind() Kind         { return KindSelect }
func (Hover) Kind() Kind          { return KindHover }
func (SetInputFiles) Kind() Kind  { return KindSetInputFiles }
func (AssertText) Kind() Kind     { return KindAssertText }
func (AssertValue) Kind() Kind    { return KindAssertValue }
func (AssertChecked) Kind() Kind  { return KindAssertChecked }
func (AssertVisible) Kind() Kind  { return KindAssertVisible }
func (AssertSnapshot) Kind() Kind { return KindAssertSnapshot }
func (a Extract) Kind() Kind      { return ExtractKind(a.Extraction) }
func (ExecuteCode) Kind() Kind    { return KindExecuteCode }

func (a OpenPage) withBase(b Base) Action       { a.Base = b; return a }
func (a ClosePage) withBase(b Base) Action      { a.Base = b; return a }
func (a Navigate) withBase(b Base) Action       { a.Base = b; return a }
func (a Click) withBase(b Base) Action          { a.Base = b; return a }
func (a Fill) withBase(b Base) Action           { a.Base = b; return a }
func (a Press) withBase(b Base) Action          { a.Base = b; return a }
func (a Check) withBase(b Base) Action          { a.Base = b; return a }
func (a Uncheck) withBase(b Base) Action        { a.Base = b; return a }
func (a Select) withBase(b Base) Action         { a.Base = b; return a }
func (a Hover) withBase(b Base) Action          { a.Base = b; return a }
func (a SetInputFiles) withBase(b Base) Action  { a.Base = b; return a }
func (a AssertText) withBase(b Base) Action     { a.Base = b; return a }
func (a AssertValue) withBase(b Base) Action    { a.Base = b; return a }
func (a AssertChecked) withBase(b Base) Action  { a.Base = b; return a }
func (a AssertVisible) withBase(b Base) Action  { a.Base = b; return a }
func (a AssertSnapshot) withBase(b Base) Action { a.Base = b; return a }
func (a Extract) withBase(b Base) Action        { a.Base = b; return a }
func (a ExecuteCode) withBase(b Base) Action    { a.Base = b; return a }

// WithSignals returns a copy of a whose signal list is replaced. The
// original action is left untouched.
func WithSignals(a Action, signals []Signal) Action {
	b := a.Common()
	b.Signals = append([]Signal(nil), signals...)
	return a.withBase(b)
}

// Title is the short human-readable name used for call-log entries.
func Title(a Action) string {
	switch v := a.(type) {
	case Navigate:
		return "navigate to " + v.URL
	case OpenPage:
		return "open page"
	case ClosePage:
		return "close page"
	case Press:
		return "press " + v.Key
	case Extract:
		return "extract " + string(v.Extraction)
	case ExecuteCode:
		return "execute code"
	case Click:
		if v.ClickCount == 2 {
			return "dblclick"
		}
		return "click"
	default:
		return string(a.Kind())
	}
}
