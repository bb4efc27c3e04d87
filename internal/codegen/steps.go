package codegen

import (
	"fmt"
	"strings"

	"recorder/internal/action"
	"recorder/internal/selector"
)

// NewSteps returns a generator that writes numbered plain-language steps,
// meant for bug reports rather than execution.
func NewSteps() Generator {
	g := &stepGenerator{
		id:       "steps",
		label:    "Steps",
		group:    "Other",
		language: "text",
		header: func(actions []action.Record, opts Options) string {
			start := opts.URL
			if start == "" {
				for _, rec := range actions {
					if open, ok := rec.Action.(action.OpenPage); ok && open.URL != "" {
						start = open.URL
						break
					}
				}
			}
			if start == "" {
				return "# Recorded steps"
			}
			return "# Recorded steps starting at " + start
		},
	}
	return &numberedSteps{stepGenerator: g}
}

// numberedSteps numbers fragments per Generate call.
type numberedSteps struct {
	*stepGenerator
}

func (g *numberedSteps) Generate(actions []action.Record, opts Options) (Output, error) {
	n := 0
	g2 := *g.stepGenerator
	g2.step = func(rec action.Record, _ Options) (string, error) {
		text := describeStep(rec)
		if text == "" {
			return "", nil
		}
		n++
		return fmt.Sprintf("%d. %s", n, text), nil
	}
	return g2.Generate(actions, opts)
}

func describeStep(rec action.Record) string {
	target := describeTarget(rec)
	switch a := rec.Action.(type) {
	case action.OpenPage:
		if a.URL == "" || a.URL == "about:blank" {
			return "Open new tab"
		}
		return "Open new tab: " + a.URL
	case action.ClosePage:
		return "Close tab " + pageVar(rec)
	case action.Navigate:
		return "Navigate to: " + a.URL
	case action.Click:
		if a.ClickCount == 2 {
			return "Double-click: " + target
		}
		return "Click: " + target
	case action.Fill:
		return fmt.Sprintf("Type %q into: %s", a.Text, target)
	case action.Press:
		return fmt.Sprintf("Press %s in: %s", shortcut(a.Key, a.Modifiers), target)
	case action.Check:
		return "Check: " + target
	case action.Uncheck:
		return "Uncheck: " + target
	case action.Select:
		return fmt.Sprintf("Select %q from: %s", strings.Join(a.Options, ", "), target)
	case action.Hover:
		return "Hover: " + target
	case action.SetInputFiles:
		return fmt.Sprintf("Upload %s to: %s", strings.Join(a.Files, ", "), target)
	case action.AssertText:
		return fmt.Sprintf("Verify %s shows %q", target, a.Text)
	case action.AssertValue:
		return fmt.Sprintf("Verify %s has value %q", target, a.Value)
	case action.AssertChecked:
		if a.Checked {
			return "Verify checked: " + target
		}
		return "Verify unchecked: " + target
	case action.AssertVisible:
		return "Verify visible: " + target
	case action.AssertSnapshot:
		return "Verify structure of: " + target
	case action.Extract:
		return fmt.Sprintf("Read %s of: %s", a.Extraction, target)
	case action.ExecuteCode:
		return "Run custom code"
	default:
		return ""
	}
}

// describeTarget picks the most human-readable description of a selector.
func describeTarget(rec action.Record) string {
	parts, err := selector.Parse(rec.Selector())
	if err != nil || len(parts) == 0 {
		return "(unknown element)"
	}
	p := parts[len(parts)-1]
	if p.Engine == selector.EngineNth && len(parts) > 1 {
		p = parts[len(parts)-2]
	}
	switch p.Engine {
	case selector.EngineRole:
		if p.Value != "" {
			return fmt.Sprintf("%q %s", p.Value, p.Role)
		}
		return p.Role
	case selector.EngineText:
		return fmt.Sprintf("%q", p.Value)
	case selector.EngineTestID:
		return fmt.Sprintf("[data-testid=%q]", p.Value)
	case selector.EnginePlaceholder:
		return fmt.Sprintf("field %q", p.Value)
	default:
		return p.Raw
	}
}
