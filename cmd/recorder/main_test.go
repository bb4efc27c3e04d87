package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recorder/internal/calllog"
	"recorder/internal/config"
	"recorder/internal/protocol"
)

func setup(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Audit.DatabasePath = filepath.Join(t.TempDir(), "calllog.db")
	t.Cleanup(func() {
		recordOutput, recordLanguage, recordMode = "", "", ""
		recordProgrammatic = false
		timeout = 0
	})
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, fn(cmd, args))
	return buf.String()
}

func TestLanguages(t *testing.T) {
	setup(t)
	out := run(t, runLanguages)
	for _, id := range []string{"playwright-test", "javascript", "python-pytest", "go-rod", "jsonl", "steps"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "(primary)")
}

func TestCallLogEmpty(t *testing.T) {
	setup(t)
	out := run(t, runCallLog)
	assert.Contains(t, out, "No entries found")
}

func TestCallLogListsAuditedEntries(t *testing.T) {
	setup(t)
	store, err := calllog.OpenStore(cfg.Audit.DatabasePath)
	require.NoError(t, err)

	d := 120 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, calllog.Entry{
		ID: "a", SessionID: "s1", Title: "click", Status: calllog.StatusDone, Kind: calllog.KindCommand,
		Params: calllog.Params{Selector: "#submit"}, Duration: &d, CreatedAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, store.Record(ctx, calllog.Entry{
		ID: "b", SessionID: "s1", Title: "innerText", Status: calllog.StatusError, Kind: calllog.KindCommand,
		Params: calllog.Params{Selector: "#missing"}, Error: "timeout exceeded after 5s", Duration: &d, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	out := run(t, runCallLog)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "#missing", "newest first")
	assert.Contains(t, lines[1], "timeout exceeded")
	assert.Contains(t, lines[2], "#submit")

	calllogStatus = "error"
	calllogJSON = true
	t.Cleanup(func() { calllogStatus, calllogJSON = "", false })
	out = run(t, runCallLog)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status":"error"`)
}

func TestSessionConfigMergesFlags(t *testing.T) {
	setup(t)
	cfg.Recorder.Output = "from-config.spec.ts"
	recordLanguage = "python-pytest"
	recordMode = "inspecting"
	recordProgrammatic = true
	timeout = 3 * time.Second

	sc := sessionConfig()
	assert.Equal(t, "python-pytest", sc.PrimaryID)
	assert.Equal(t, protocol.ModeInspecting, sc.Mode)
	assert.Equal(t, "from-config.spec.ts", sc.OutputPath)
	assert.True(t, sc.Programmatic)
	assert.Equal(t, 3*time.Second, sc.CommandTimeout)
	assert.Equal(t, 5*time.Second, sc.SignalThreshold)
	assert.Len(t, sc.Generators, 6)

	recordOutput = "flag.py"
	assert.Equal(t, "flag.py", sessionConfig().OutputPath)
}

func TestSurfaceConfigFromFile(t *testing.T) {
	setup(t)
	cfg.Surface.Addr = ":9999"
	cfg.Surface.PingInterval = "5s"
	sc := surfaceConfig()
	assert.Equal(t, ":9999", sc.Addr)
	assert.Equal(t, 5*time.Second, sc.PingInterval)
	assert.Equal(t, 100, sc.Burst)
}

func TestReplayRejectsEmptyRecording(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"browserName":"chromium"}`+"\n"), 0644))

	err := runReplay(&cobra.Command{}, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no actions")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 40, "line one line two"},
		{"abcdefghij", 8, "abcde..."},
		{"ééééééééé", 6, "ééé..."},
		{"日本語のエラーメッセージ", 7, "日本語の..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got), got)
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recorder:\n  language: cobol\n"), 0644))

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"languages", "--config", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recorder language")
}
