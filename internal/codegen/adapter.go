package codegen

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"recorder/internal/action"
	"recorder/internal/logging"
)

// HighlightPaused marks the lines of the action the session is paused on.
const HighlightPaused = "paused"

// Highlight marks one line of a Source.
type Highlight struct {
	Line int    `json:"line"`
	Kind string `json:"type"`
}

// Source is the document shown for one generator.
type Source struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Group      string      `json:"group"`
	Language   string      `json:"language"`
	Text       string      `json:"text"`
	Header     string      `json:"header"`
	Footer     string      `json:"footer"`
	Actions    []string    `json:"actions"`
	IsRecorded bool        `json:"isRecorded"`
	IsPrimary  bool        `json:"isPrimary,omitempty"`
	Highlight  []Highlight `json:"highlight"`
	RevealLine int         `json:"revealLine,omitempty"`
	// Error is set when the generator failed; Text then only carries a
	// comment describing the failure.
	Error string `json:"error,omitempty"`
}

// Adapter regenerates every registered generator's Source on demand.
type Adapter struct {
	generators []Generator
	primaryID  string
	limit      int
}

// NewAdapter registers generators in display order. primaryID names the
// generator whose text is mirrored to the output target.
func NewAdapter(generators []Generator, primaryID string) *Adapter {
	return &Adapter{
		generators: generators,
		primaryID:  primaryID,
		limit:      runtime.GOMAXPROCS(0),
	}
}

// Generators returns the registered generators.
func (a *Adapter) Generators() []Generator { return a.generators }

// PrimaryID returns the id of the mirrored generator.
func (a *Adapter) PrimaryID() string { return a.primaryID }

// Regenerate produces one Source per generator, in registration order. A
// generator that fails or panics yields a Source with Error set; the others
// are unaffected. When paused, the last action's lines are highlighted.
func (a *Adapter) Regenerate(actions []action.Record, opts Options, paused bool) []Source {
	timer := logging.StartTimer(logging.CategoryCodegen, "regenerate")
	defer timer.StopWithThreshold(100 * time.Millisecond)

	sources := make([]Source, len(a.generators))
	var g errgroup.Group
	g.SetLimit(a.limit)
	for i, gen := range a.generators {
		g.Go(func() error {
			sources[i] = a.run(gen, actions, opts, paused)
			return nil
		})
	}
	_ = g.Wait()
	return sources
}

func (a *Adapter) run(gen Generator, actions []action.Record, opts Options, paused bool) (src Source) {
	src = Source{
		ID:         gen.ID(),
		Label:      gen.Label(),
		Group:      gen.Group(),
		Language:   gen.Language(),
		IsRecorded: true,
		IsPrimary:  gen.ID() == a.primaryID,
		Highlight:  []Highlight{},
	}
	defer func() {
		if r := recover(); r != nil {
			logging.CodegenError("generator %s panicked: %v\n%s", gen.ID(), r, debug.Stack())
			src = failedSource(src, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := gen.Generate(actions, opts)
	if err != nil {
		logging.CodegenWarn("generator %s failed: %v", gen.ID(), err)
		return failedSource(src, err)
	}

	src.Text = out.Text
	src.Header = out.Header
	src.Footer = out.Footer
	src.Actions = out.ActionTexts
	src.RevealLine = lineCount(out.Text)
	if paused && len(out.ActionTexts) > 0 {
		if first, last, ok := fragmentLines(out.Header, out.ActionTexts, len(out.ActionTexts)-1); ok {
			for line := first; line <= last; line++ {
				src.Highlight = append(src.Highlight, Highlight{Line: line, Kind: HighlightPaused})
			}
		}
	}
	return src
}

func failedSource(src Source, err error) Source {
	src.Error = err.Error()
	src.Text = fmt.Sprintf("// %s generator failed: %v\n", src.Label, err)
	src.Header, src.Footer, src.Actions = "", "", nil
	src.RevealLine = 1
	return src
}
