// Package browser is the boundary between the recorder and a live browser.
// Page and Frame are the only views the rest of the recorder has of a page;
// Manager implements them on top of go-rod.
package browser

import (
	"context"
	"errors"
	"time"

	"recorder/internal/action"
)

// ErrUnsupportedAction is returned by Frame.Perform for kinds that are not
// element gestures.
var ErrUnsupportedAction = errors.New("unsupported action")

// Box is an element's bounding box in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Frame is one document of a page: the main frame or an iframe.
type Frame interface {
	// Descriptor locates the frame for action records.
	Descriptor() action.FrameDescriptor
	// Count returns how many elements currently match sel. It does not wait.
	Count(ctx context.Context, sel string) (int, error)
	// Perform runs an element gesture against the action's selector,
	// waiting for the element until ctx is done.
	Perform(ctx context.Context, a action.Action) error
	// Extract reads one property of the element matching sel, waiting for
	// it until ctx is done. Count and isVisible answer immediately.
	Extract(ctx context.Context, sel string, kind action.Extraction, args []string) (any, error)
}

// Page is one tab.
type Page interface {
	ID() string
	Alias() string
	URL() string
	Title(ctx context.Context) (string, error)
	// MainFrame returns the top-level document.
	MainFrame() Frame
	// Frames returns the main frame followed by nested frames in document
	// order.
	Frames(ctx context.Context) ([]Frame, error)
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// Press sends a key with modifiers to whatever has focus.
	Press(ctx context.Context, key string, modifiers int) error
	// Highlight outlines the elements matching sel; an empty selector
	// removes the overlay.
	Highlight(ctx context.Context, sel string) error
}

// PageSource lists the pages of the recorded context in insertion order.
type PageSource interface {
	Pages() []Page
}

// Muter is implemented by page sources whose instrumentation would report
// input driven by a command as an organic gesture.
type Muter interface {
	// Mute stops gesture reporting until the returned func is called.
	// Gestures produced in between are discarded.
	Mute() (unmute func())
}

// Observer receives page-side events from the instrumentation.
type Observer interface {
	// ActionPerformed reports an organic gesture.
	ActionPerformed(rec action.Record)
	// ElementPicked reports an element chosen in an inspecting mode.
	ElementPicked(page Page, sel string, userGesture bool)
	// Navigated reports a main-frame navigation.
	Navigated(page Page, url string, at time.Time)
	// PageOpened reports a new page. opener is nil unless it is a popup.
	PageOpened(page Page, opener Page)
	// PageClosed reports a page that went away.
	PageClosed(page Page)
}
