package codegen

import (
	"fmt"
	"strings"

	"recorder/internal/action"
)

// NewPlaywrightTest returns the Node.js test-runner generator.
func NewPlaywrightTest() Generator {
	return &stepGenerator{
		id:       "playwright-test",
		label:    "Test Runner",
		group:    "Node.js",
		language: "javascript",
		header: func(_ []action.Record, _ Options) string {
			return "import { test, expect } from '@playwright/test';\n\ntest('test', async ({ page }) => {"
		},
		footer: func(Options) string { return "});" },
		step: func(rec action.Record, opts Options) (string, error) {
			return indent(jsStep(rec, opts, true), "  "), nil
		},
	}
}

// NewJavaScript returns the Node.js library generator.
func NewJavaScript() Generator {
	return &stepGenerator{
		id:       "javascript",
		label:    "Library",
		group:    "Node.js",
		language: "javascript",
		header: func(_ []action.Record, opts Options) string {
			browser := opts.BrowserName
			if browser == "" {
				browser = "chromium"
			}
			return fmt.Sprintf("const { %s } = require('playwright');\nconst { expect } = require('@playwright/test');\n\n"+
				"(async () => {\n  const browser = await %s.launch({\n    headless: %t\n  });\n  const context = await browser.newContext();",
				browser, browser, opts.Headless)
		},
		footer: func(Options) string {
			return "\n  // ---------------------\n  await context.close();\n  await browser.close();\n})();"
		},
		step: func(rec action.Record, opts Options) (string, error) {
			return indent(jsStep(rec, opts, false), "  "), nil
		},
	}
}

// jsStep renders one action. The test runner provides the first page as a
// fixture; the library declares every page itself.
func jsStep(rec action.Record, opts Options, pageFixture bool) string {
	page := pageVar(rec)

	if open, ok := rec.Action.(action.OpenPage); ok {
		var lines []string
		if !pageFixture || page != "page" {
			lines = append(lines, fmt.Sprintf("const %s = await context.newPage();", page))
		}
		if open.URL != "" && open.URL != "about:blank" && open.URL != "chrome://newtab/" {
			lines = append(lines, fmt.Sprintf("await %s.goto(%s);", page, jsString(open.URL)))
		}
		return strings.Join(lines, "\n")
	}

	var pre, post []string
	if _, ok := signal(rec, action.SignalDialog); ok {
		pre = append(pre, fmt.Sprintf("%s.once('dialog', dialog => {\n  console.log(`Dialog message: ${dialog.message()}`);\n  dialog.dismiss().catch(() => {});\n});", page))
	}
	if popup, ok := signal(rec, action.SignalPopup); ok {
		pre = append(pre, fmt.Sprintf("const %sPromise = %s.waitForEvent('popup');", popup.PopupAlias, page))
		post = append(post, fmt.Sprintf("const %s = await %sPromise;", popup.PopupAlias, popup.PopupAlias))
	}
	if dl, ok := signal(rec, action.SignalDownload); ok {
		pre = append(pre, fmt.Sprintf("const %sPromise = %s.waitForEvent('download');", dl.DownloadAlias, page))
		post = append(post, fmt.Sprintf("const %s = await %sPromise;", dl.DownloadAlias, dl.DownloadAlias))
	}

	main := jsActionCall(rec, opts)
	if opts.AutoExpect {
		if nav, ok := signal(rec, action.SignalNavigation); ok && rec.Kind() != action.KindNavigate {
			post = append(post, fmt.Sprintf("await expect(%s).toHaveURL(%s);", page, jsString(nav.URL)))
		}
	}

	lines := append(pre, main)
	return strings.Join(append(lines, post...), "\n")
}

func jsActionCall(rec action.Record, opts Options) string {
	page := pageVar(rec)
	loc := jsLocator(rec)

	switch a := rec.Action.(type) {
	case action.ClosePage:
		return fmt.Sprintf("await %s.close();", page)
	case action.Navigate:
		return fmt.Sprintf("await %s.goto(%s);", page, jsString(a.URL))
	case action.Click:
		method := "click"
		if a.ClickCount == 2 {
			method = "dblclick"
		}
		var opt []string
		if a.Button != "" && a.Button != "left" {
			opt = append(opt, "button: "+jsString(a.Button))
		}
		if mods := modifierNames(a.Modifiers); len(mods) > 0 {
			quoted := make([]string, len(mods))
			for i, m := range mods {
				quoted[i] = jsString(m)
			}
			opt = append(opt, "modifiers: ["+strings.Join(quoted, ", ")+"]")
		}
		if a.ClickCount > 2 {
			opt = append(opt, fmt.Sprintf("clickCount: %d", a.ClickCount))
		}
		if a.Position != nil {
			opt = append(opt, fmt.Sprintf("position: { x: %g, y: %g }", a.Position.X, a.Position.Y))
		}
		if len(opt) == 0 {
			return fmt.Sprintf("await %s.%s();", loc, method)
		}
		return fmt.Sprintf("await %s.%s({\n  %s\n});", loc, method, strings.Join(opt, ",\n  "))
	case action.Fill:
		line := fmt.Sprintf("await %s.fill(%s);", loc, jsString(a.Text))
		if opts.AutoExpect {
			line += fmt.Sprintf("\nawait expect(%s).toHaveValue(%s);", loc, jsString(a.Text))
		}
		return line
	case action.Press:
		return fmt.Sprintf("await %s.press(%s);", loc, jsString(shortcut(a.Key, a.Modifiers)))
	case action.Check:
		return fmt.Sprintf("await %s.check();", loc)
	case action.Uncheck:
		return fmt.Sprintf("await %s.uncheck();", loc)
	case action.Select:
		return fmt.Sprintf("await %s.selectOption(%s);", loc, jsStringList(a.Options))
	case action.Hover:
		return fmt.Sprintf("await %s.hover();", loc)
	case action.SetInputFiles:
		return fmt.Sprintf("await %s.setInputFiles(%s);", loc, jsStringList(a.Files))
	case action.AssertText:
		if a.Substring {
			return fmt.Sprintf("await expect(%s).toContainText(%s);", loc, jsString(a.Text))
		}
		return fmt.Sprintf("await expect(%s).toHaveText(%s);", loc, jsString(a.Text))
	case action.AssertValue:
		return fmt.Sprintf("await expect(%s).toHaveValue(%s);", loc, jsString(a.Value))
	case action.AssertChecked:
		if a.Checked {
			return fmt.Sprintf("await expect(%s).toBeChecked();", loc)
		}
		return fmt.Sprintf("await expect(%s).not.toBeChecked();", loc)
	case action.AssertVisible:
		return fmt.Sprintf("await expect(%s).toBeVisible();", loc)
	case action.AssertSnapshot:
		return fmt.Sprintf("await expect(%s).toMatchAriaSnapshot(`\n%s\n`);", loc, indent(a.Snapshot, "  "))
	case action.Extract:
		return jsExtraction(loc, a)
	case action.ExecuteCode:
		return commentBlock("// ", "execute code", a.Code)
	default:
		return fmt.Sprintf("// unsupported action %s", rec.Kind())
	}
}

func jsExtraction(loc string, a action.Extract) string {
	switch a.Extraction {
	case action.ExtractGetAttribute:
		name := ""
		if len(a.Args) > 0 {
			name = a.Args[0]
		}
		return fmt.Sprintf("await %s.getAttribute(%s);", loc, jsString(name))
	default:
		return fmt.Sprintf("await %s.%s();", loc, a.Extraction)
	}
}

func jsStringList(items []string) string {
	if len(items) == 1 {
		return jsString(items[0])
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = jsString(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// commentBlock renders a title plus body as line comments.
func commentBlock(prefix, title, body string) string {
	lines := []string{prefix + title + ":"}
	for _, l := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		lines = append(lines, strings.TrimRight(prefix+l, " "))
	}
	return strings.Join(lines, "\n")
}
