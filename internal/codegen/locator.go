package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"recorder/internal/action"
	"recorder/internal/selector"
)

// EscapeJS escapes a string for embedding in a single-quoted JavaScript
// literal.
func EscapeJS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

func jsString(s string) string { return "'" + EscapeJS(s) + "'" }

// pyString renders a double-quoted Python literal.
func pyString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return `"` + s + `"`
}

// goString renders a Go string literal.
func goString(s string) string { return strconv.Quote(s) }

// jsLocator renders the frame path and selector of rec as a Playwright
// JavaScript locator expression rooted at the page variable.
func jsLocator(rec action.Record) string {
	var b strings.Builder
	b.WriteString(pageVar(rec))
	for _, hop := range rec.Frame.FramePath {
		fmt.Fprintf(&b, ".locator(%s).contentFrame()", jsString(hop))
	}
	parts, err := selector.Parse(rec.Selector())
	if err != nil {
		fmt.Fprintf(&b, ".locator(%s)", jsString(rec.Selector()))
		return b.String()
	}
	for _, p := range parts {
		switch p.Engine {
		case selector.EngineRole:
			if p.Value == "" {
				fmt.Fprintf(&b, ".getByRole(%s)", jsString(p.Role))
			} else if p.Exact {
				fmt.Fprintf(&b, ".getByRole(%s, { name: %s, exact: true })", jsString(p.Role), jsString(p.Value))
			} else {
				fmt.Fprintf(&b, ".getByRole(%s, { name: %s })", jsString(p.Role), jsString(p.Value))
			}
		case selector.EngineText:
			if p.Exact {
				fmt.Fprintf(&b, ".getByText(%s, { exact: true })", jsString(p.Value))
			} else {
				fmt.Fprintf(&b, ".getByText(%s)", jsString(p.Value))
			}
		case selector.EngineTestID:
			fmt.Fprintf(&b, ".getByTestId(%s)", jsString(p.Value))
		case selector.EnginePlaceholder:
			fmt.Fprintf(&b, ".getByPlaceholder(%s)", jsString(p.Value))
		case selector.EngineNth:
			if p.Index == 0 {
				b.WriteString(".first()")
			} else {
				fmt.Fprintf(&b, ".nth(%d)", p.Index)
			}
		default:
			fmt.Fprintf(&b, ".locator(%s)", jsString(p.Raw))
		}
	}
	return b.String()
}

// pyLocator is the Python counterpart of jsLocator.
func pyLocator(rec action.Record) string {
	var b strings.Builder
	b.WriteString(pageVar(rec))
	for _, hop := range rec.Frame.FramePath {
		fmt.Fprintf(&b, ".locator(%s).content_frame", pyString(hop))
	}
	parts, err := selector.Parse(rec.Selector())
	if err != nil {
		fmt.Fprintf(&b, ".locator(%s)", pyString(rec.Selector()))
		return b.String()
	}
	for _, p := range parts {
		switch p.Engine {
		case selector.EngineRole:
			switch {
			case p.Value == "":
				fmt.Fprintf(&b, ".get_by_role(%s)", pyString(p.Role))
			case p.Exact:
				fmt.Fprintf(&b, ".get_by_role(%s, name=%s, exact=True)", pyString(p.Role), pyString(p.Value))
			default:
				fmt.Fprintf(&b, ".get_by_role(%s, name=%s)", pyString(p.Role), pyString(p.Value))
			}
		case selector.EngineText:
			if p.Exact {
				fmt.Fprintf(&b, ".get_by_text(%s, exact=True)", pyString(p.Value))
			} else {
				fmt.Fprintf(&b, ".get_by_text(%s)", pyString(p.Value))
			}
		case selector.EngineTestID:
			fmt.Fprintf(&b, ".get_by_test_id(%s)", pyString(p.Value))
		case selector.EnginePlaceholder:
			fmt.Fprintf(&b, ".get_by_placeholder(%s)", pyString(p.Value))
		case selector.EngineNth:
			if p.Index == 0 {
				b.WriteString(".first")
			} else {
				fmt.Fprintf(&b, ".nth(%d)", p.Index)
			}
		default:
			fmt.Fprintf(&b, ".locator(%s)", pyString(p.Raw))
		}
	}
	return b.String()
}

// roleCSS approximates a role with the CSS that matches its explicit and
// most common implicit forms.
var roleCSS = map[string]string{
	"button":   `button, [role="button"], input[type="button"], input[type="submit"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], input[type="search"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"radio":    `input[type="radio"], [role="radio"]`,
	"heading":  `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"combobox": `select, [role="combobox"]`,
	"listitem": `li, [role="listitem"]`,
	"img":      `img, [role="img"]`,
}

// goRodLocator renders a go-rod element lookup. Role and text parts map to
// ElementR with a regular expression on the element text.
func goRodLocator(rec action.Record) string {
	var b strings.Builder
	b.WriteString(pageVar(rec))
	for _, hop := range rec.Frame.FramePath {
		fmt.Fprintf(&b, ".MustElement(%s).MustFrame()", goString(hop))
	}
	parts, err := selector.Parse(rec.Selector())
	if err != nil {
		fmt.Fprintf(&b, ".MustElement(%s)", goString(rec.Selector()))
		return b.String()
	}
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		nth := -1
		if p.Engine == selector.EngineCSS && i+1 < len(parts) && parts[i+1].Engine == selector.EngineNth {
			nth = parts[i+1].Index
			i++
		}
		switch p.Engine {
		case selector.EngineRole:
			css, ok := roleCSS[p.Role]
			if !ok {
				css = fmt.Sprintf(`[role=%q]`, p.Role)
			}
			fmt.Fprintf(&b, ".MustElementR(%s, %s)", goString(css), goString(textRegex(p.Value, p.Exact)))
		case selector.EngineText:
			fmt.Fprintf(&b, ".MustElementR(%s, %s)", goString("*"), goString(textRegex(p.Value, p.Exact)))
		case selector.EngineNth:
			fmt.Fprintf(&b, ".MustElements(%s)[%d]", goString("*"), p.Index)
		default:
			if nth >= 0 {
				fmt.Fprintf(&b, ".MustElements(%s)[%d]", goString(p.Raw), nth)
				continue
			}
			fmt.Fprintf(&b, ".MustElement(%s)", goString(p.Raw))
		}
	}
	return b.String()
}

func textRegex(text string, exact bool) string {
	q := regexp.QuoteMeta(text)
	if exact {
		return "/^" + q + "$/"
	}
	return "/" + q + "/i"
}
