package codegen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/action"
	"recorder/internal/collapse"
)

func TestProgrammaticAddedThenUpdated(t *testing.T) {
	p := NewProgrammatic(NewJavaScript(), collapse.New(0))

	stream := []action.Record{rec(action.Fill{Base: action.Base{Selector: "#q"}, Text: "r"}, 0)}
	ev, err := p.Observe(stream, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, ev.Type)
	assert.Equal(t, "  await page.locator('#q').fill('r');", ev.Fragment)

	stream = append(stream, rec(action.Fill{Base: action.Base{Selector: "#q"}, Text: "ro"}, 20))
	ev, err = p.Observe(stream, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, ev.Type)
	assert.Equal(t, "ro", ev.Record.Action.(action.Fill).Text)

	stream = append(stream, rec(action.Click{Base: action.Base{Selector: "#go"}, Button: "left", ClickCount: 1}, 40))
	ev, err = p.Observe(stream, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, ev.Type)
	assert.Equal(t, action.KindClick, ev.Record.Kind())
}

func TestProgrammaticSignalIsUpdate(t *testing.T) {
	p := NewProgrammatic(NewPlaywrightTest(), collapse.New(0))
	stream := []action.Record{
		rec(action.Click{Base: action.Base{Selector: "#open"}, Button: "left", ClickCount: 1}, 0).
			WithSignal(action.Signal{Name: action.SignalPopup, PopupAlias: "page1"}),
	}
	ev, err := p.SignalAttached(stream, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, ev.Type)
	assert.Contains(t, ev.Fragment, "waitForEvent('popup')")
}

func TestProgrammaticEmptyStream(t *testing.T) {
	ev, err := NewProgrammatic(NewJSONL(), collapse.New(0)).Observe(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionEvent{}, ev)
}

func TestOutputWriterCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "test.spec.ts")
	w := NewOutputWriter(path, time.Hour)

	w.Update("one\n")
	w.Update("two\n")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written before the delay or a flush")

	require.NoError(t, w.Flush())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))

	w.Update("three\n")
	require.NoError(t, w.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "three\n", string(data))

	w.Update("after close\n")
	require.NoError(t, w.Flush())
	data, _ = os.ReadFile(path)
	assert.Equal(t, "three\n", string(data))
}

func TestOutputWriterWritesAfterDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.js")
	w := NewOutputWriter(path, 10*time.Millisecond)
	defer w.Close()

	w.Update("hello\n")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && string(data) == "hello\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUserSourcesReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)\n"), 0644))

	changed := make(chan []Source, 4)
	us, err := NewUserSources([]string{path}, func(s []Source) { changed <- s })
	require.NoError(t, err)

	initial := us.Sources()
	require.Len(t, initial, 1)
	assert.False(t, initial[0].IsRecorded)
	assert.Equal(t, "python", initial[0].Language)
	assert.Equal(t, "print(1)\n", initial[0].Text)

	require.NoError(t, us.Start(t.Context()))
	defer us.Stop()

	require.NoError(t, os.WriteFile(path, []byte("print(2)\n"), 0644))
	select {
	case got := <-changed:
		require.Len(t, got, 1)
		assert.Equal(t, "print(2)\n", got[0].Text)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "go", LanguageForPath("main.go"))
	assert.Equal(t, "typescript", LanguageForPath("a/b.TS"))
	assert.Equal(t, "text", LanguageForPath("README"))
}
