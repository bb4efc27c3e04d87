package codegen

import (
	"fmt"
	"strings"

	"recorder/internal/action"
)

// NewPythonPytest returns the pytest generator.
func NewPythonPytest() Generator {
	return &stepGenerator{
		id:       "python-pytest",
		label:    "Pytest",
		group:    "Python",
		language: "python",
		header: func(_ []action.Record, _ Options) string {
			return "import re\nfrom playwright.sync_api import Page, expect\n\n\ndef test_example(page: Page) -> None:"
		},
		step: func(rec action.Record, opts Options) (string, error) {
			return indent(pyStep(rec, opts), "    "), nil
		},
	}
}

func pyStep(rec action.Record, opts Options) string {
	page := pageVar(rec)

	if open, ok := rec.Action.(action.OpenPage); ok {
		var lines []string
		if page != "page" {
			lines = append(lines, fmt.Sprintf("%s = page.context.new_page()", page))
		}
		if open.URL != "" && open.URL != "about:blank" && open.URL != "chrome://newtab/" {
			lines = append(lines, fmt.Sprintf("%s.goto(%s)", page, pyString(open.URL)))
		}
		return strings.Join(lines, "\n")
	}

	body := pyActionCall(rec, opts)
	var pre, post []string
	if _, ok := signal(rec, action.SignalDialog); ok {
		pre = append(pre, fmt.Sprintf("%s.once(\"dialog\", lambda dialog: dialog.dismiss())", page))
	}
	// expect_popup and expect_download wrap the action in a context manager.
	if popup, ok := signal(rec, action.SignalPopup); ok {
		body = fmt.Sprintf("with %s.expect_popup() as %s_info:\n%s", page, popup.PopupAlias, indent(body, "    "))
		post = append(post, fmt.Sprintf("%s = %s_info.value", popup.PopupAlias, popup.PopupAlias))
	}
	if dl, ok := signal(rec, action.SignalDownload); ok {
		body = fmt.Sprintf("with %s.expect_download() as %s_info:\n%s", page, dl.DownloadAlias, indent(body, "    "))
		post = append(post, fmt.Sprintf("%s = %s_info.value", dl.DownloadAlias, dl.DownloadAlias))
	}
	if opts.AutoExpect {
		if nav, ok := signal(rec, action.SignalNavigation); ok && rec.Kind() != action.KindNavigate {
			post = append(post, fmt.Sprintf("expect(%s).to_have_url(%s)", page, pyString(nav.URL)))
		}
	}
	lines := append(pre, body)
	return strings.Join(append(lines, post...), "\n")
}

func pyActionCall(rec action.Record, opts Options) string {
	page := pageVar(rec)
	loc := pyLocator(rec)

	switch a := rec.Action.(type) {
	case action.ClosePage:
		return fmt.Sprintf("%s.close()", page)
	case action.Navigate:
		return fmt.Sprintf("%s.goto(%s)", page, pyString(a.URL))
	case action.Click:
		method := "click"
		if a.ClickCount == 2 {
			method = "dblclick"
		}
		var kw []string
		if a.Button != "" && a.Button != "left" {
			kw = append(kw, "button="+pyString(a.Button))
		}
		if mods := modifierNames(a.Modifiers); len(mods) > 0 {
			kw = append(kw, "modifiers="+pyStringList(mods))
		}
		if a.ClickCount > 2 {
			kw = append(kw, fmt.Sprintf("click_count=%d", a.ClickCount))
		}
		if a.Position != nil {
			kw = append(kw, fmt.Sprintf(`position={"x":%g,"y":%g}`, a.Position.X, a.Position.Y))
		}
		return fmt.Sprintf("%s.%s(%s)", loc, method, strings.Join(kw, ", "))
	case action.Fill:
		line := fmt.Sprintf("%s.fill(%s)", loc, pyString(a.Text))
		if opts.AutoExpect {
			line += fmt.Sprintf("\nexpect(%s).to_have_value(%s)", loc, pyString(a.Text))
		}
		return line
	case action.Press:
		return fmt.Sprintf("%s.press(%s)", loc, pyString(shortcut(a.Key, a.Modifiers)))
	case action.Check:
		return fmt.Sprintf("%s.check()", loc)
	case action.Uncheck:
		return fmt.Sprintf("%s.uncheck()", loc)
	case action.Select:
		if len(a.Options) == 1 {
			return fmt.Sprintf("%s.select_option(%s)", loc, pyString(a.Options[0]))
		}
		return fmt.Sprintf("%s.select_option(%s)", loc, pyStringList(a.Options))
	case action.Hover:
		return fmt.Sprintf("%s.hover()", loc)
	case action.SetInputFiles:
		return fmt.Sprintf("%s.set_input_files(%s)", loc, pyStringList(a.Files))
	case action.AssertText:
		if a.Substring {
			return fmt.Sprintf("expect(%s).to_contain_text(%s)", loc, pyString(a.Text))
		}
		return fmt.Sprintf("expect(%s).to_have_text(%s)", loc, pyString(a.Text))
	case action.AssertValue:
		return fmt.Sprintf("expect(%s).to_have_value(%s)", loc, pyString(a.Value))
	case action.AssertChecked:
		if a.Checked {
			return fmt.Sprintf("expect(%s).to_be_checked()", loc)
		}
		return fmt.Sprintf("expect(%s).not_to_be_checked()", loc)
	case action.AssertVisible:
		return fmt.Sprintf("expect(%s).to_be_visible()", loc)
	case action.AssertSnapshot:
		return fmt.Sprintf("expect(%s).to_match_aria_snapshot(%s)", loc, pyString(a.Snapshot))
	case action.Extract:
		return pyExtraction(loc, a)
	case action.ExecuteCode:
		return commentBlock("# ", "execute code", a.Code)
	default:
		return fmt.Sprintf("# unsupported action %s", rec.Kind())
	}
}

var pyExtractionMethods = map[action.Extraction]string{
	action.ExtractInnerText:   "inner_text()",
	action.ExtractTextContent: "text_content()",
	action.ExtractIsVisible:   "is_visible()",
	action.ExtractIsEnabled:   "is_enabled()",
	action.ExtractIsChecked:   "is_checked()",
	action.ExtractCount:       "count()",
	action.ExtractBoundingBox: "bounding_box()",
}

func pyExtraction(loc string, a action.Extract) string {
	if a.Extraction == action.ExtractGetAttribute {
		name := ""
		if len(a.Args) > 0 {
			name = a.Args[0]
		}
		return fmt.Sprintf("%s.get_attribute(%s)", loc, pyString(name))
	}
	method, ok := pyExtractionMethods[a.Extraction]
	if !ok {
		return fmt.Sprintf("# unsupported extraction %s", a.Extraction)
	}
	return loc + "." + method
}

func pyStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = pyString(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
