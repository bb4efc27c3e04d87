package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/action"
	"recorder/internal/browser/browsertest"
	"recorder/internal/selector"
)

func newFakePage() *browsertest.Page {
	p := browsertest.NewPage("t1", "page", "https://example.test/login")
	p.SetTitle("Login")
	p.Main().Set("h1", browsertest.Element{Text: "Welcome"})
	p.Main().Set("#user", browsertest.Element{})
	p.Main().Set(selector.Role("button", "Sign in", false), browsertest.Element{})
	return p
}

func TestWrap(t *testing.T) {
	src := Wrap(`page.URL()`)
	assert.Contains(t, src, `return inspector.Result(page.URL())`)
	require.NoError(t, Validate(src))

	src = Wrap("t, err := page.Title()\nreturn t, err")
	assert.Contains(t, src, "t, err := page.Title()")
	require.NoError(t, Validate(src))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", Wrap(`page.URL(`)},
		{"extra import", "package main\n\nimport \"inspector\"\nimport \"os\"\n\nfunc Run(page *inspector.Page) (interface{}, error) { return nil, nil }\n"},
		{"wrong import", "package main\n\nimport \"os\"\n\nfunc Run(page *inspector.Page) (interface{}, error) { return nil, nil }\n"},
		{"renamed import", "package main\n\nimport x \"inspector\"\n\nfunc Run(page *x.Page) (interface{}, error) { return nil, nil }\n"},
		{"escaping body", Wrap("return nil, nil\n}\n\nfunc helper() {")},
		{"top-level var", Wrap("return nil, nil\n}\n\nvar leak = 1\n\nfunc init() {")},
		{"no run", "package main\n\nimport \"inspector\"\n\nvar _ = inspector.Result\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.src), ErrRejected)
		})
	}
}

func TestRunExpression(t *testing.T) {
	page := newFakePage()
	ev := NewEvaluator()
	ctx := context.Background()

	got, err := ev.Run(ctx, page, `page.URL()`)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/login", got)

	got, err = ev.Run(ctx, page, `page.Locator("h1").InnerText()`)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", got)
}

func TestRunBodyDrivesPage(t *testing.T) {
	page := newFakePage()
	code := `
if err := page.Locator("#user").Fill("joe"); err != nil {
	return nil, err
}
if err := page.GetByRole("button", "Sign in").Click(); err != nil {
	return nil, err
}
return page.Title()
`
	got, err := NewEvaluator().Run(context.Background(), page, code)
	require.NoError(t, err)
	assert.Equal(t, "Login", got)

	performed := page.Main().Performed()
	require.Len(t, performed, 2)
	assert.Equal(t, action.KindFill, performed[0].Kind())
	assert.Equal(t, `internal:role=button[name="Sign in"i]`, performed[1].Common().Selector)

	el, ok := page.Main().Element("#user")
	require.True(t, ok)
	assert.Equal(t, "joe", el.Value)
}

func TestRunUsesMatchingFrame(t *testing.T) {
	page := newFakePage()
	inner := page.AddFrame("#checkout")
	inner.Set("#pay", browsertest.Element{Text: "Pay now"})

	got, err := NewEvaluator().Run(context.Background(), page, `page.Locator("#pay").TextContent()`)
	require.NoError(t, err)
	assert.Equal(t, "Pay now", got)
}

func TestRunRejectsExtraDeclarations(t *testing.T) {
	_, err := NewEvaluator().Run(context.Background(), newFakePage(), "return nil, nil\n}\n\nfunc init() {")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRunHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewEvaluator().Run(ctx, newFakePage(), `page.Locator("#missing").Click()`)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunReturnsSnippetError(t *testing.T) {
	page := newFakePage()
	_, err := NewEvaluator().Run(context.Background(), page, `page.Press("Hyper")`)
	assert.Error(t, err)
}

func TestResult(t *testing.T) {
	v, err := Result("x", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = Result(assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)

	v, err = Result(&Locator{sel: "#a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"selector": "#a"}, v)
}
