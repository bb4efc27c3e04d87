package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestInitializeWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "recorder.log")
	if err := Initialize(Config{Level: "debug", Format: "json", File: logPath}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { SetRoot(nil) })

	Get(CategoryExecutor).Info("command %s finished", "click")
	SessionDebug("debug line %d", 7)
	Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{`"logger":"executor"`, "command click finished", "debug line 7", "logging initialized"} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q:\n%s", want, content)
		}
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "recorder.log")
	err := Initialize(Config{
		Level:      "info",
		File:       logPath,
		Categories: map[string]bool{"surface": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { SetRoot(nil) })

	if IsCategoryEnabled(CategorySurface) {
		t.Fatal("surface should be disabled")
	}
	if !IsCategoryEnabled(CategoryCodegen) {
		t.Fatal("unlisted categories default to enabled")
	}

	Surface("should not appear")
	Codegen("should appear")
	Sync()

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "should not appear") {
		t.Error("disabled category wrote output")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Error("enabled category missing")
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "recorder.log")
	if err := Initialize(Config{Level: "warn", File: logPath}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { SetRoot(nil) })

	BrowserDebug("hidden debug")
	Browser("hidden info")
	BrowserWarn("visible warn")
	Sync()

	data, _ := os.ReadFile(logPath)
	content := string(data)
	if strings.Contains(content, "hidden") {
		t.Errorf("below-threshold entries written:\n%s", content)
	}
	if !strings.Contains(content, "visible warn") {
		t.Errorf("warn entry missing:\n%s", content)
	}
}

func TestNoopBeforeInitialize(t *testing.T) {
	SetRoot(nil)
	// Must not panic.
	Get(CategoryBoot).Error("nothing")
	Get(CategorySandbox).With("session", "s1").Warn("nothing either")
}

func TestConcurrentGet(t *testing.T) {
	SetRoot(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Get(CategorySession).Debug("tick")
		}()
	}
	wg.Wait()
}

func TestTimerThreshold(t *testing.T) {
	SetRoot(nil)
	timer := StartTimer(CategoryCodegen, "regenerate")
	time.Sleep(2 * time.Millisecond)
	if d := timer.StopWithThreshold(time.Nanosecond); d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}
}
