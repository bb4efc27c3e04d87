// Package selector builds and parses the selector strings passed between the
// page instrumentation, the executor and the code generators.
//
// A selector is a chain of parts joined by " >> ". Each part is a CSS
// selector, an internal:role part, an internal:text part, or nth=N.
package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separator joins chained selector parts.
const Separator = " >> "

// Engine names the kind of a selector part.
type Engine string

const (
	EngineCSS         Engine = "css"
	EngineRole        Engine = "role"
	EngineText        Engine = "text"
	EngineNth         Engine = "nth"
	EngineTestID      Engine = "testid"
	EnginePlaceholder Engine = "placeholder"
)

const (
	rolePrefix = "internal:role="
	textPrefix = "internal:text="
	nthPrefix  = "nth="
)

// TestIDAttribute is the attribute GetByTestID matches on.
const TestIDAttribute = "data-testid"

// Part is one parsed hop of a selector chain.
type Part struct {
	Engine Engine
	// Raw is the part exactly as it appeared in the chain.
	Raw string
	// Role is set for EngineRole.
	Role string
	// Value is the accessible name, text, test id or placeholder.
	Value string
	// Exact is true for case-sensitive whole-string matching.
	Exact bool
	// Index is set for EngineNth.
	Index int
}

// Role lowers a role locator into its internal selector string.
func Role(role, name string, exact bool) string {
	if name == "" {
		return rolePrefix + role
	}
	return fmt.Sprintf(`%s%s[name=%s%s]`, rolePrefix, role, Quote(name), flag(exact))
}

// Text lowers a text locator into its internal selector string.
func Text(text string, exact bool) string {
	return textPrefix + Quote(text) + flag(exact)
}

// TestID returns a CSS selector matching the test id attribute.
func TestID(id string) string {
	return fmt.Sprintf(`[%s=%s]`, TestIDAttribute, Quote(id))
}

// Placeholder returns a CSS selector matching the placeholder attribute.
func Placeholder(text string) string {
	return fmt.Sprintf(`[placeholder=%s]`, Quote(text))
}

// Nth narrows sel to its index-th match.
func Nth(sel string, index int) string {
	return Chain(sel, nthPrefix+strconv.Itoa(index))
}

// Chain scopes inner to the matches of outer.
func Chain(outer, inner string) string {
	if outer == "" {
		return inner
	}
	if inner == "" {
		return outer
	}
	return outer + Separator + inner
}

func flag(exact bool) string {
	if exact {
		return "s"
	}
	return "i"
}

// Quote wraps s in double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// unquote reads a quoted string at the start of s and returns its value and
// the remainder after the closing quote.
func unquote(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", fmt.Errorf("expected quoted string in %q", s)
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("dangling escape in %q", s)
			}
			i++
			if s[i] == 'n' {
				b.WriteByte('\n')
			} else {
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated string in %q", s)
}

var attrCSS = regexp.MustCompile(`^\[([a-zA-Z-]+)="((?:[^"\\]|\\.)*)"\]$`)

// Parse splits sel into parts. Parts that are not internal syntax are
// treated as CSS.
func Parse(sel string) ([]Part, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, fmt.Errorf("empty selector")
	}
	var parts []Part
	for _, raw := range splitChain(sel) {
		p, err := parsePart(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// splitChain splits on the separator outside of quoted strings.
func splitChain(sel string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(sel); i++ {
		switch {
		case sel[i] == '\\' && inQuote:
			i++
		case sel[i] == '"':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(sel[i:], Separator):
			out = append(out, sel[start:i])
			i += len(Separator) - 1
			start = i + 1
		}
	}
	return append(out, sel[start:])
}

func parsePart(raw string) (Part, error) {
	switch {
	case strings.HasPrefix(raw, nthPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(raw, nthPrefix))
		if err != nil {
			return Part{}, fmt.Errorf("invalid nth part %q: %w", raw, err)
		}
		return Part{Engine: EngineNth, Raw: raw, Index: n}, nil

	case strings.HasPrefix(raw, textPrefix):
		text, rest, err := unquote(strings.TrimPrefix(raw, textPrefix))
		if err != nil {
			return Part{}, err
		}
		return Part{Engine: EngineText, Raw: raw, Value: text, Exact: rest == "s"}, nil

	case strings.HasPrefix(raw, rolePrefix):
		body := strings.TrimPrefix(raw, rolePrefix)
		role, attrs, hasAttrs := strings.Cut(body, "[")
		p := Part{Engine: EngineRole, Raw: raw, Role: role}
		if !hasAttrs {
			return p, nil
		}
		if !strings.HasPrefix(attrs, "name=") {
			return Part{}, fmt.Errorf("unsupported role attribute in %q", raw)
		}
		name, rest, err := unquote(strings.TrimPrefix(attrs, "name="))
		if err != nil {
			return Part{}, err
		}
		p.Value = name
		p.Exact = strings.HasPrefix(rest, "s")
		return p, nil
	}

	if m := attrCSS.FindStringSubmatch(raw); m != nil {
		value, _, err := unquote(`"` + m[2] + `"`)
		if err == nil {
			switch m[1] {
			case TestIDAttribute:
				return Part{Engine: EngineTestID, Raw: raw, Value: value, Exact: true}, nil
			case "placeholder":
				return Part{Engine: EnginePlaceholder, Raw: raw, Value: value}, nil
			}
		}
	}
	return Part{Engine: EngineCSS, Raw: raw, Value: raw}, nil
}
