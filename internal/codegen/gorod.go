package codegen

import (
	"fmt"
	"sort"
	"strings"

	"recorder/internal/action"
)

// NewGoRod returns a generator emitting a standalone go-rod program.
func NewGoRod() Generator {
	return &stepGenerator{
		id:       "go-rod",
		label:    "go-rod",
		group:    "Go",
		language: "go",
		header:   goRodHeader,
		footer:   func(Options) string { return "}" },
		step: func(rec action.Record, opts Options) (string, error) {
			return indent(goRodStep(rec, opts), "\t"), nil
		},
	}
}

// rodKeys maps key names reported by the page to go-rod's input constants.
var rodKeys = map[string]string{
	"Enter":      "input.Enter",
	"Tab":        "input.Tab",
	"Escape":     "input.Escape",
	"Backspace":  "input.Backspace",
	"Delete":     "input.Delete",
	"ArrowUp":    "input.ArrowUp",
	"ArrowDown":  "input.ArrowDown",
	"ArrowLeft":  "input.ArrowLeft",
	"ArrowRight": "input.ArrowRight",
	"Home":       "input.Home",
	"End":        "input.End",
	"PageUp":     "input.PageUp",
	"PageDown":   "input.PageDown",
	"Space":      "input.Space",
	" ":          "input.Space",
}

func rodKey(name string) string {
	if k, ok := rodKeys[name]; ok {
		return k
	}
	if r := []rune(name); len(r) == 1 {
		return fmt.Sprintf("input.Key(%q)", r[0])
	}
	return fmt.Sprintf("input.Key(0) /* %s */", name)
}

func goRodHeader(actions []action.Record, opts Options) string {
	imports := map[string]bool{`"github.com/go-rod/rod"`: true}
	if !opts.Headless {
		imports[`"github.com/go-rod/rod/lib/launcher"`] = true
	}
	for _, rec := range actions {
		switch a := rec.Action.(type) {
		case action.Press:
			imports[`"github.com/go-rod/rod/lib/input"`] = true
		case action.Extract:
			imports[`"fmt"`] = true
		case action.AssertText:
			imports[`"log"`] = true
			if a.Substring {
				imports[`"strings"`] = true
			}
		case action.AssertValue, action.AssertChecked, action.AssertVisible:
			imports[`"log"`] = true
		case action.Fill:
			if opts.AutoExpect {
				imports[`"log"`] = true
			}
		}
		if opts.AutoExpect && rec.HasSignal(action.SignalNavigation) {
			imports[`"log"`] = true
		}
	}
	var std, third []string
	for imp := range imports {
		if strings.Contains(imp, ".") {
			third = append(third, imp)
		} else {
			std = append(std, imp)
		}
	}
	sort.Strings(std)
	sort.Strings(third)

	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, imp := range std {
		b.WriteString("\t" + imp + "\n")
	}
	if len(std) > 0 {
		b.WriteString("\n")
	}
	for _, imp := range third {
		b.WriteString("\t" + imp + "\n")
	}
	b.WriteString(")\n\nfunc main() {\n")
	if opts.Headless {
		b.WriteString("\tbrowser := rod.New().MustConnect()\n")
	} else {
		b.WriteString("\tbrowser := rod.New().ControlURL(launcher.New().Headless(false).MustLaunch()).MustConnect()\n")
	}
	b.WriteString("\tdefer browser.MustClose()\n\n\tpage := browser.MustPage()")
	return b.String()
}

func goRodStep(rec action.Record, opts Options) string {
	page := pageVar(rec)

	if open, ok := rec.Action.(action.OpenPage); ok {
		var lines []string
		if page != "page" {
			lines = append(lines, fmt.Sprintf("%s := browser.MustPage()", page))
		}
		if open.URL != "" && open.URL != "about:blank" && open.URL != "chrome://newtab/" {
			lines = append(lines, fmt.Sprintf("%s.MustNavigate(%s).MustWaitLoad()", page, goString(open.URL)))
		}
		return strings.Join(lines, "\n")
	}

	var pre, post []string
	if _, ok := signal(rec, action.SignalDialog); ok {
		pre = append(pre, fmt.Sprintf("waitDialog, handleDialog := %s.MustHandleDialog()\ngo func() {\n\twaitDialog()\n\thandleDialog(false, \"\")\n}()", page))
	}
	if popup, ok := signal(rec, action.SignalPopup); ok {
		pre = append(pre, fmt.Sprintf("wait%s := %s.MustWaitOpen()", popup.PopupAlias, page))
		post = append(post, fmt.Sprintf("%s := wait%s()", popup.PopupAlias, popup.PopupAlias))
	}
	if dl, ok := signal(rec, action.SignalDownload); ok {
		pre = append(pre, fmt.Sprintf("wait%s := browser.MustWaitDownload()", dl.DownloadAlias))
		post = append(post, fmt.Sprintf("_ = wait%s()", dl.DownloadAlias))
	}
	main := goRodActionCall(rec, opts)
	if opts.AutoExpect {
		if nav, ok := signal(rec, action.SignalNavigation); ok && rec.Kind() != action.KindNavigate {
			post = append(post, fmt.Sprintf("%s.MustWaitLoad()\nif got := %s.MustInfo().URL; got != %s {\n\tlog.Fatalf(\"unexpected url %%q\", got)\n}", page, page, goString(nav.URL)))
		}
	}
	lines := append(pre, main)
	return strings.Join(append(lines, post...), "\n")
}

func goRodActionCall(rec action.Record, opts Options) string {
	page := pageVar(rec)
	loc := goRodLocator(rec)

	switch a := rec.Action.(type) {
	case action.ClosePage:
		return fmt.Sprintf("%s.MustClose()", page)
	case action.Navigate:
		return fmt.Sprintf("%s.MustNavigate(%s).MustWaitLoad()", page, goString(a.URL))
	case action.Click:
		if a.ClickCount == 2 {
			return loc + ".MustDoubleClick()"
		}
		return loc + ".MustClick()"
	case action.Fill:
		line := fmt.Sprintf("%s.MustSelectAllText().MustInput(%s)", loc, goString(a.Text))
		if opts.AutoExpect {
			line += fmt.Sprintf("\nif got := %s.MustProperty(\"value\").String(); got != %s {\n\tlog.Fatalf(\"unexpected value %%q\", got)\n}", loc, goString(a.Text))
		}
		return line
	case action.Press:
		return fmt.Sprintf("%s.MustType(%s)", loc, rodKey(a.Key))
	case action.Check:
		return fmt.Sprintf("if !%s.MustProperty(\"checked\").Bool() {\n\t%s.MustClick()\n}", loc, loc)
	case action.Uncheck:
		return fmt.Sprintf("if %s.MustProperty(\"checked\").Bool() {\n\t%s.MustClick()\n}", loc, loc)
	case action.Select:
		return fmt.Sprintf("%s.MustSelect(%s)", loc, goStringArgs(a.Options))
	case action.Hover:
		return loc + ".MustHover()"
	case action.SetInputFiles:
		return fmt.Sprintf("%s.MustSetFiles(%s)", loc, goStringArgs(a.Files))
	case action.AssertText:
		cond := fmt.Sprintf("got != %s", goString(a.Text))
		if a.Substring {
			cond = fmt.Sprintf("!strings.Contains(got, %s)", goString(a.Text))
		}
		return fmt.Sprintf("if got := %s.MustText(); %s {\n\tlog.Fatalf(\"unexpected text %%q\", got)\n}", loc, cond)
	case action.AssertValue:
		return fmt.Sprintf("if got := %s.MustProperty(\"value\").String(); got != %s {\n\tlog.Fatalf(\"unexpected value %%q\", got)\n}", loc, goString(a.Value))
	case action.AssertChecked:
		op := "!"
		if !a.Checked {
			op = ""
		}
		return fmt.Sprintf("if %s%s.MustProperty(\"checked\").Bool() {\n\tlog.Fatal(\"unexpected checked state\")\n}", op, loc)
	case action.AssertVisible:
		return fmt.Sprintf("if !%s.MustVisible() {\n\tlog.Fatal(\"element is not visible\")\n}", loc)
	case action.AssertSnapshot:
		return commentBlock("// ", "aria snapshot", a.Snapshot)
	case action.Extract:
		return goRodExtraction(loc, a)
	case action.ExecuteCode:
		return commentBlock("// ", "execute code", a.Code)
	default:
		return fmt.Sprintf("// unsupported action %s", rec.Kind())
	}
}

func goRodExtraction(loc string, a action.Extract) string {
	switch a.Extraction {
	case action.ExtractInnerText:
		return fmt.Sprintf("fmt.Println(%s.MustText())", loc)
	case action.ExtractTextContent:
		return fmt.Sprintf("fmt.Println(%s.MustProperty(\"textContent\").String())", loc)
	case action.ExtractGetAttribute:
		name := ""
		if len(a.Args) > 0 {
			name = a.Args[0]
		}
		return fmt.Sprintf("fmt.Println(%s.MustAttribute(%s))", loc, goString(name))
	case action.ExtractIsVisible:
		return fmt.Sprintf("fmt.Println(%s.MustVisible())", loc)
	case action.ExtractIsEnabled:
		return fmt.Sprintf("fmt.Println(!%s.MustDisabled())", loc)
	case action.ExtractIsChecked:
		return fmt.Sprintf("fmt.Println(%s.MustProperty(\"checked\").Bool())", loc)
	case action.ExtractBoundingBox:
		return fmt.Sprintf("fmt.Println(%s.MustShape().Box())", loc)
	case action.ExtractCount:
		if i := strings.LastIndex(loc, ".MustElement("); i >= 0 {
			loc = loc[:i] + ".MustElements(" + loc[i+len(".MustElement("):]
		}
		return fmt.Sprintf("fmt.Println(len(%s))", loc)
	default:
		return fmt.Sprintf("// unsupported extraction %s", a.Extraction)
	}
}

func goStringArgs(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = goString(s)
	}
	return strings.Join(quoted, ", ")
}
