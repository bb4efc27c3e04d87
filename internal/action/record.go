package action

import (
	"slices"
	"time"
)

// Extraction is one of the fixed read-only queries the executor supports.
type Extraction string

const (
	ExtractInnerText    Extraction = "innerText"
	ExtractTextContent  Extraction = "textContent"
	ExtractGetAttribute Extraction = "getAttribute"
	ExtractIsVisible    Extraction = "isVisible"
	ExtractIsEnabled    Extraction = "isEnabled"
	ExtractIsChecked    Extraction = "isChecked"
	ExtractCount        Extraction = "count"
	ExtractBoundingBox  Extraction = "boundingBox"

	// ExtractInputValue reads a form control's current value. Replay uses
	// it to check value assertions; operators cannot request it.
	ExtractInputValue Extraction = "inputValue"
)

var extractions = []Extraction{
	ExtractInnerText, ExtractTextContent, ExtractGetAttribute, ExtractIsVisible,
	ExtractIsEnabled, ExtractIsChecked, ExtractCount, ExtractBoundingBox,
}

// ParseExtraction reports whether s names a supported extraction.
func ParseExtraction(s string) (Extraction, bool) {
	e := Extraction(s)
	return e, slices.Contains(extractions, e)
}

// SignalName tags the kind of an out-of-band Signal.
type SignalName string

const (
	SignalNavigation SignalName = "navigation"
	SignalPopup      SignalName = "popup"
	SignalDownload   SignalName = "download"
	SignalDialog     SignalName = "dialog"
)

// Signal is an out-of-band event associated with an action after it was
// recorded, such as the navigation a click caused.
type Signal struct {
	Name          SignalName `json:"name"`
	URL           string     `json:"url,omitempty"`
	PopupAlias    string     `json:"popupAlias,omitempty"`
	DownloadAlias string     `json:"downloadAlias,omitempty"`
	DialogAlias   string     `json:"dialogAlias,omitempty"`
}

// FrameDescriptor identifies exactly one frame inside one page.
type FrameDescriptor struct {
	PageID    string   `json:"pageId"`
	PageAlias string   `json:"pageAlias"`
	FramePath []string `json:"framePath"`
}

// Same reports whether two descriptors address the same frame.
func (f FrameDescriptor) Same(o FrameDescriptor) bool {
	return f.PageID == o.PageID && f.PageAlias == o.PageAlias && slices.Equal(f.FramePath, o.FramePath)
}

// IsMainFrame reports whether the descriptor points at the page's top frame.
func (f FrameDescriptor) IsMainFrame() bool {
	return len(f.FramePath) == 0
}

// Record is one entry of the ActionStream.
type Record struct {
	Frame     FrameDescriptor
	Action    Action
	StartTime time.Time
	// Synthetic marks records built for operator-issued commands.
	Synthetic bool
}

func (r Record) Kind() Kind        { return r.Action.Kind() }
func (r Record) Selector() string  { return r.Action.Common().Selector }
func (r Record) Signals() []Signal { return r.Action.Common().Signals }
func (r Record) HasSignals() bool  { return len(r.Action.Common().Signals) > 0 }
func (r Record) PageAlias() string { return r.Frame.PageAlias }

// WithSignal returns a copy of r with s appended to the action's signals.
func (r Record) WithSignal(s Signal) Record {
	sigs := append(slices.Clone(r.Signals()), s)
	r.Action = WithSignals(r.Action, sigs)
	return r
}

// HasSignal reports whether the action already carries a signal of the
// given name.
func (r Record) HasSignal(name SignalName) bool {
	for _, s := range r.Signals() {
		if s.Name == name {
			return true
		}
	}
	return false
}
