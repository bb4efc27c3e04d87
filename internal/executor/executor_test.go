package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/action"
	"recorder/internal/browser/browsertest"
	"recorder/internal/calllog"
	"recorder/internal/sandbox"
)

type fixture struct {
	page     *browsertest.Page
	pages    *browsertest.Context
	log      *calllog.Log
	exec     *Executor
	recorded []action.Record
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		page: browsertest.NewPage("t1", "page", "https://example.test/"),
		log:  calllog.New("s1"),
	}
	f.page.Main().Set("#submit", browsertest.Element{})
	f.page.Main().Set("#title", browsertest.Element{Text: "Hello"})
	f.page.Main().Set("#name", browsertest.Element{Attrs: map[string]string{"maxlength": "8"}})

	opts = append([]Option{WithRecorder(func(r action.Record) { f.recorded = append(f.recorded, r) })}, opts...)
	f.pages = browsertest.NewContext(f.page)
	f.exec = New(f.pages, f.log, opts...)
	return f
}

func TestPerformActionClick(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metricCommands.WithLabelValues(kindAction, "done"))

	res, err := f.exec.PerformAction(context.Background(), ActionRequest{Locator: "#submit", Action: "click"})
	require.NoError(t, err)
	assert.Nil(t, res.Value)

	entries := f.log.Snapshot()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, res.LogID, e.ID)
	assert.Equal(t, calllog.StatusDone, e.Status)
	assert.Equal(t, "#submit", e.Params.Selector)
	assert.Equal(t, "click", e.Title)
	require.NotNil(t, e.Duration)

	require.Len(t, f.page.Main().Performed(), 1)
	require.Len(t, f.recorded, 1)
	assert.True(t, f.recorded[0].Synthetic)
	assert.Equal(t, action.KindClick, f.recorded[0].Kind())
	assert.Equal(t, "page", f.recorded[0].PageAlias())

	assert.Equal(t, before+1, testutil.ToFloat64(metricCommands.WithLabelValues(kindAction, "done")))
}

func TestPerformActionMutesInstrumentation(t *testing.T) {
	f := newFixture(t, WithTimeout(50*time.Millisecond))
	var heldDuring bool
	f.page.Main().OnPerform = func(action.Action) { heldDuring = f.pages.Muted() }
	f.exec.record = func(action.Record) {
		assert.False(t, f.pages.Muted(), "released before the synthetic record is handed over")
	}

	_, err := f.exec.PerformAction(context.Background(), ActionRequest{Locator: "#submit", Action: "click"})
	require.NoError(t, err)
	assert.True(t, heldDuring)
	assert.Equal(t, 1, f.pages.Mutes())

	_, err = f.exec.PerformAction(context.Background(), ActionRequest{Locator: "#missing", Action: "click"})
	require.Error(t, err)
	assert.False(t, f.pages.Muted(), "released after a failure")
}

func TestPerformActionVariants(t *testing.T) {
	tests := []struct {
		req  ActionRequest
		want action.Action
	}{
		{ActionRequest{Locator: "#submit", Action: "dblclick"}, action.Click{Base: action.Base{Selector: "#submit"}, Button: "left", ClickCount: 2}},
		{ActionRequest{Locator: "#submit", Action: "fill", Args: []string{"joe"}}, action.Fill{Base: action.Base{Selector: "#submit"}, Text: "joe"}},
		{ActionRequest{Locator: "#submit", Action: "press", Args: []string{"Control+Enter"}}, action.Press{Base: action.Base{Selector: "#submit"}, Key: "Enter", Modifiers: action.ModifierControl}},
		{ActionRequest{Locator: "#submit", Action: "select", Args: []string{"red", "blue"}}, action.Select{Base: action.Base{Selector: "#submit"}, Options: []string{"red", "blue"}}},
		{ActionRequest{Locator: "#submit", Action: "check"}, action.Check{Base: action.Base{Selector: "#submit"}}},
	}
	for _, tt := range tests {
		t.Run(tt.req.Action, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.exec.PerformAction(context.Background(), tt.req)
			require.NoError(t, err)
			performed := f.page.Main().Performed()
			require.Len(t, performed, 1)
			assert.Equal(t, tt.want, performed[0])
		})
	}
}

func TestPerformActionNavigate(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.PerformAction(context.Background(), ActionRequest{Action: "navigate", Args: []string{"https://example.test/next"}})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/next", f.page.URL())

	entries := f.log.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.test/next", entries[0].Params.URL)
}

func TestPerformActionValidation(t *testing.T) {
	tests := []ActionRequest{
		{Locator: "", Action: "click"},
		{Locator: "   ", Action: "click"},
		{Locator: "#submit", Action: ""},
		{Locator: "#submit", Action: "teleport"},
		{Locator: "#submit", Action: "press"},
		{Locator: "#submit", Action: "select"},
		{Action: "navigate"},
	}
	for _, req := range tests {
		f := newFixture(t)
		_, err := f.exec.PerformAction(context.Background(), req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%+v", req)
		assert.Empty(t, f.log.Snapshot(), "validation failures never reach the call log")
		assert.Empty(t, f.recorded)
	}
}

func TestPerformActionNoPages(t *testing.T) {
	exec := New(browsertest.NewContext(), calllog.New("s1"))
	_, err := exec.PerformAction(context.Background(), ActionRequest{Locator: "#submit", Action: "click"})

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrNoPages)
	assert.Contains(t, err.Error(), "no pages available")
}

func TestPerformActionFailure(t *testing.T) {
	f := newFixture(t)
	f.page.Main().Err = errors.New("element is detached")

	_, err := f.exec.PerformAction(context.Background(), ActionRequest{Locator: "#submit", Action: "click"})
	var xerr *ExecutionError
	require.ErrorAs(t, err, &xerr)

	e, ok := f.log.Get(xerr.LogID)
	require.True(t, ok)
	assert.Equal(t, calllog.StatusError, e.Status)
	assert.Contains(t, e.Error, "element is detached")
	assert.Empty(t, f.recorded)
}

func TestPerformExtractionTwice(t *testing.T) {
	f := newFixture(t)
	req := ExtractionRequest{Locator: "#title", Extraction: "innerText"}

	first, err := f.exec.PerformExtraction(context.Background(), req)
	require.NoError(t, err)
	second, err := f.exec.PerformExtraction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Hello", first.Value)
	assert.Equal(t, first.Value, second.Value)
	assert.True(t, first.Extraction)
	assert.NotEqual(t, first.LogID, second.LogID)

	entries := f.log.Snapshot()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, calllog.StatusDone, e.Status)
		assert.Equal(t, []string{`"Hello"`}, e.Messages)
	}
	require.Len(t, f.recorded, 2, "ad hoc commands are never deduplicated")
	assert.Equal(t, action.ExtractKind(action.ExtractInnerText), f.recorded[1].Kind())
}

func TestPerformExtractionMissingTimesOut(t *testing.T) {
	f := newFixture(t, WithTimeout(50*time.Millisecond))
	before := testutil.ToFloat64(metricCommands.WithLabelValues(kindExtraction, "error"))

	_, err := f.exec.PerformExtraction(context.Background(), ExtractionRequest{Locator: "#missing", Extraction: "innerText"})
	require.ErrorIs(t, err, ErrTimeout)
	var xerr *ExecutionError
	require.ErrorAs(t, err, &xerr)

	entries := f.log.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, calllog.StatusError, entries[0].Status)
	assert.Contains(t, entries[0].Error, "timeout")
	assert.Equal(t, before+1, testutil.ToFloat64(metricCommands.WithLabelValues(kindExtraction, "error")))
}

func TestPerformExtractionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.exec.PerformExtraction(ctx, ExtractionRequest{Locator: "#title", Extraction: "outerHTML"})
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "unsupported extraction")

	_, err = f.exec.PerformExtraction(ctx, ExtractionRequest{Locator: "#title", Extraction: "inputValue"})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = f.exec.PerformExtraction(ctx, ExtractionRequest{Locator: "#name", Extraction: "getAttribute"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Empty(t, f.log.Snapshot())
}

func TestPerformExtractionGetAttribute(t *testing.T) {
	f := newFixture(t)
	res, err := f.exec.PerformExtraction(context.Background(), ExtractionRequest{Locator: "#name", Extraction: "getAttribute", Args: []string{"maxlength"}})
	require.NoError(t, err)
	assert.Equal(t, "8", res.Value)
}

func TestPerformExtractionFindsFrame(t *testing.T) {
	f := newFixture(t)
	inner := f.page.AddFrame("#embed")
	inner.Set("#price", browsertest.Element{Text: "$10"})

	res, err := f.exec.PerformExtraction(context.Background(), ExtractionRequest{Locator: "#price", Extraction: "textContent"})
	require.NoError(t, err)
	assert.Equal(t, "$10", res.Value)
	require.Len(t, f.recorded, 1)
	assert.Equal(t, []string{"#embed"}, f.recorded[0].Frame.FramePath)
}

func TestExecuteCode(t *testing.T) {
	f := newFixture(t, WithEvaluator(sandbox.NewEvaluator()))

	res, err := f.exec.ExecuteCode(context.Background(), `page.Locator("#title").InnerText()`)
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Value)
	assert.False(t, res.Extraction)

	require.Len(t, f.recorded, 1)
	assert.Equal(t, action.ExecuteCode{Code: `page.Locator("#title").InnerText()`}, f.recorded[0].Action)
	assert.Equal(t, "execute code", f.log.Snapshot()[0].Title)
}

func TestExecuteCodeValidation(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"", "  "} {
		_, err := f.exec.ExecuteCode(context.Background(), code)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, code)
	}
	assert.Empty(t, f.log.Snapshot())
}

func TestExecuteCodeRejectedSnippetFails(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"return nil, nil\n}\n\nfunc init() {", "page.Locator("} {
		res, err := f.exec.ExecuteCode(context.Background(), code)
		var xerr *ExecutionError
		require.ErrorAs(t, err, &xerr, code)
		assert.Equal(t, res.LogID, xerr.LogID)

		e, ok := f.log.Get(xerr.LogID)
		require.True(t, ok)
		assert.Equal(t, calllog.StatusError, e.Status)
		assert.NotEmpty(t, e.Error)
	}
	assert.Len(t, f.log.Snapshot(), 2)
	assert.Empty(t, f.recorded)
}

func TestReplay(t *testing.T) {
	f := newFixture(t)
	f.page.Main().Set("#user", browsertest.Element{})
	frame := action.FrameDescriptor{PageID: "old", PageAlias: "page"}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []action.Record{
		{Frame: frame, StartTime: at, Action: action.OpenPage{URL: "https://example.test/login"}},
		{Frame: frame, StartTime: at, Action: action.Fill{Base: action.Base{Selector: "#user"}, Text: "joe"}},
		{Frame: frame, StartTime: at, Action: action.AssertValue{Base: action.Base{Selector: "#user"}, Value: "joe"}},
		{Frame: frame, StartTime: at, Action: action.Click{
			Base:   action.Base{Selector: "#submit", Signals: []action.Signal{{Name: action.SignalNavigation, URL: "https://example.test/home"}}},
			Button: "left", ClickCount: 1,
		}},
		{Frame: frame, StartTime: at, Action: action.AssertText{Base: action.Base{Selector: "#title"}, Text: "Hel", Substring: true}},
		{Frame: frame, StartTime: at, Action: action.ClosePage{}},
	}

	n, err := f.exec.Replay(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "https://example.test/login", f.page.URL())

	entries := f.log.Snapshot()
	require.Len(t, entries, 5)
	for _, e := range entries {
		assert.Equal(t, calllog.StatusDone, e.Status, e.Title)
	}
	click := f.page.Main().Performed()[1]
	assert.Empty(t, click.Common().Signals, "replayed gestures drop recorded signals")
}

func TestReplayStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, WithTimeout(50*time.Millisecond))
	records := []action.Record{
		{Action: action.AssertText{Base: action.Base{Selector: "#title"}, Text: "Goodbye"}},
		{Action: action.Click{Base: action.Base{Selector: "#submit"}, Button: "left", ClickCount: 1}},
	}

	n, err := f.exec.Replay(context.Background(), records)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), `expected text "Goodbye", got "Hello"`)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.page.Main().Performed())
}
