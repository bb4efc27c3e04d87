// Package codegen turns the collapsed action sequence into one Source per
// registered language generator and keeps those Sources in sync with the
// ActionStream.
package codegen

import (
	"fmt"
	"strings"

	"recorder/internal/action"
)

// Options are the inputs shared by every generator.
type Options struct {
	BrowserName string
	// URL is the page the recording started on.
	URL        string
	AutoExpect bool
	Headless   bool
}

// Output is what a generator produces for one action sequence.
type Output struct {
	Header      string
	Footer      string
	ActionTexts []string
	Text        string
}

// Generator emits source text for one target language. Generate must be a
// pure function of its inputs.
type Generator interface {
	ID() string
	Label() string
	Group() string
	Language() string
	Generate(actions []action.Record, opts Options) (Output, error)
}

// stepGenerator is the common shape of the built-in generators: a header,
// one fragment per action, and a footer.
type stepGenerator struct {
	id, label, group, language string

	header func(actions []action.Record, opts Options) string
	footer func(opts Options) string
	step   func(rec action.Record, opts Options) (string, error)
}

func (g *stepGenerator) ID() string       { return g.id }
func (g *stepGenerator) Label() string    { return g.label }
func (g *stepGenerator) Group() string    { return g.group }
func (g *stepGenerator) Language() string { return g.language }

func (g *stepGenerator) Generate(actions []action.Record, opts Options) (Output, error) {
	out := Output{ActionTexts: make([]string, 0, len(actions))}
	if g.header != nil {
		out.Header = g.header(actions, opts)
	}
	if g.footer != nil {
		out.Footer = g.footer(opts)
	}
	for i, rec := range actions {
		text, err := g.step(rec, opts)
		if err != nil {
			return Output{}, fmt.Errorf("%s: action %d (%s): %w", g.id, i, rec.Kind(), err)
		}
		out.ActionTexts = append(out.ActionTexts, text)
	}
	out.Text = assemble(out.Header, out.ActionTexts, out.Footer)
	return out, nil
}

// assemble joins the non-empty parts with newlines. The result always ends
// with a newline unless it is empty.
func assemble(header string, fragments []string, footer string) string {
	var parts []string
	if header != "" {
		parts = append(parts, header)
	}
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, f)
		}
	}
	if footer != "" {
		parts = append(parts, footer)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n"
}

// fragmentLines returns the 1-based first and last line of fragments[i]
// inside the text produced by assemble. ok is false for empty fragments.
func fragmentLines(header string, fragments []string, i int) (first, last int, ok bool) {
	if i < 0 || i >= len(fragments) || fragments[i] == "" {
		return 0, 0, false
	}
	line := 1
	if header != "" {
		line += lineCount(header)
	}
	for j := 0; j < i; j++ {
		if fragments[j] != "" {
			line += lineCount(fragments[j])
		}
	}
	return line, line + lineCount(fragments[i]) - 1, true
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Builtin returns the generators shipped with the recorder in display order.
func Builtin() []Generator {
	return []Generator{
		NewPlaywrightTest(),
		NewJavaScript(),
		NewPythonPytest(),
		NewGoRod(),
		NewJSONL(),
		NewSteps(),
	}
}

// Lookup returns the generator with the given id.
func Lookup(gens []Generator, id string) (Generator, bool) {
	for _, g := range gens {
		if g.ID() == id {
			return g, true
		}
	}
	return nil, false
}

func pageVar(rec action.Record) string {
	if rec.Frame.PageAlias == "" {
		return "page"
	}
	return rec.Frame.PageAlias
}

func modifierNames(mask int) []string {
	var out []string
	if mask&action.ModifierAlt != 0 {
		out = append(out, "Alt")
	}
	if mask&action.ModifierControl != 0 {
		out = append(out, "Control")
	}
	if mask&action.ModifierMeta != 0 {
		out = append(out, "Meta")
	}
	if mask&action.ModifierShift != 0 {
		out = append(out, "Shift")
	}
	return out
}

// shortcut renders a key with its modifiers, e.g. "Control+Shift+A".
func shortcut(key string, mask int) string {
	return strings.Join(append(modifierNames(mask), key), "+")
}

// signal finds the first signal of the given name.
func signal(rec action.Record, name action.SignalName) (action.Signal, bool) {
	for _, s := range rec.Signals() {
		if s.Name == name {
			return s, true
		}
	}
	return action.Signal{}, false
}
