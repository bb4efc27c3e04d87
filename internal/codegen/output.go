package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"recorder/internal/logging"
)

// DefaultOutputDelay is how long text must stay unchanged before it is
// written.
const DefaultOutputDelay = 250 * time.Millisecond

// OutputWriter mirrors the primary Source to a file. Updates are
// coalesced; only the latest text is written once the delay elapses.
type OutputWriter struct {
	path  string
	delay time.Duration

	mu      sync.Mutex
	pending string
	dirty   bool
	written string
	timer   *time.Timer
	closed  bool
}

// NewOutputWriter returns a writer targeting path.
func NewOutputWriter(path string, delay time.Duration) *OutputWriter {
	if delay <= 0 {
		delay = DefaultOutputDelay
	}
	return &OutputWriter{path: path, delay: delay}
}

// Path returns the destination file.
func (w *OutputWriter) Path() string { return w.path }

// Update records text as the latest content and schedules a write.
func (w *OutputWriter) Update(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending = text
	w.dirty = text != w.written
	if !w.dirty {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.delay, w.fire)
	} else {
		w.timer.Reset(w.delay)
	}
}

func (w *OutputWriter) fire() {
	if err := w.Flush(); err != nil {
		logging.CodegenError("failed to write output %s: %v", w.path, err)
	}
}

// Flush writes pending text immediately.
func (w *OutputWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirty {
		return nil
	}
	if err := writeFileAtomic(w.path, []byte(w.pending)); err != nil {
		return err
	}
	w.written = w.pending
	w.dirty = false
	logging.CodegenDebug("wrote %d bytes to %s", len(w.pending), w.path)
	return nil
}

// Close stops scheduling and flushes whatever is pending.
func (w *OutputWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.Flush()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace output: %w", err)
	}
	return nil
}
