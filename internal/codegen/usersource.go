package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recorder/internal/logging"
)

var extLanguages = map[string]string{
	".js":    "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".py":    "python",
	".go":    "go",
	".jsonl": "jsonl",
	".txt":   "text",
	".md":    "markdown",
}

// LanguageForPath guesses a Source language from a file extension.
func LanguageForPath(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// LoadUserSource reads an operator-authored file as a non-recorded Source.
func LoadUserSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, err
	}
	text := string(data)
	return Source{
		ID:         "user:" + path,
		Label:      filepath.Base(path),
		Group:      "User",
		Language:   LanguageForPath(path),
		Text:       text,
		Actions:    []string{},
		Highlight:  []Highlight{},
		RevealLine: lineCount(text),
	}, nil
}

// UserSources keeps operator-authored files loaded and reloads them when
// they change on disk. onChange receives the full set after every reload.
type UserSources struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	paths    []string
	sources  map[string]Source
	pending  map[string]time.Time
	debounce time.Duration
	onChange func([]Source)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewUserSources loads paths immediately. Unreadable files are logged and
// skipped until they appear.
func NewUserSources(paths []string, onChange func([]Source)) (*UserSources, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	us := &UserSources{
		watcher:  w,
		sources:  make(map[string]Source),
		pending:  make(map[string]time.Time),
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		us.paths = append(us.paths, abs)
		us.load(abs)
	}
	return us, nil
}

// Sources returns the loaded files in configuration order.
func (us *UserSources) Sources() []Source {
	us.mu.RLock()
	defer us.mu.RUnlock()
	out := make([]Source, 0, len(us.paths))
	for _, p := range us.paths {
		if src, ok := us.sources[p]; ok {
			out = append(out, src)
		}
	}
	return out
}

// Start watches the directories holding the configured files. Directories
// are watched instead of files so editors that save by rename are seen.
func (us *UserSources) Start(ctx context.Context) error {
	us.mu.Lock()
	if us.running {
		us.mu.Unlock()
		return nil
	}
	us.running = true
	us.mu.Unlock()

	seen := make(map[string]bool)
	for _, p := range us.paths {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := us.watcher.Add(dir); err != nil {
			logging.CodegenWarn("user sources: cannot watch %s: %v", dir, err)
		}
	}

	go us.run(ctx)
	return nil
}

// Stop ends watching and waits for the loop to exit.
func (us *UserSources) Stop() {
	us.mu.Lock()
	wasRunning := us.running
	us.running = false
	us.mu.Unlock()

	if wasRunning {
		close(us.stopCh)
		<-us.doneCh
	}
	if err := us.watcher.Close(); err != nil {
		logging.CodegenWarn("user sources: close watcher: %v", err)
	}
}

func (us *UserSources) run(ctx context.Context) {
	defer close(us.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-us.stopCh:
			return
		case ev, ok := <-us.watcher.Events:
			if !ok {
				return
			}
			us.handleEvent(ev)
		case err, ok := <-us.watcher.Errors:
			if !ok {
				return
			}
			logging.CodegenWarn("user sources: watcher error: %v", err)
		case <-ticker.C:
			us.processSettled()
		}
	}
}

func (us *UserSources) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	us.mu.Lock()
	defer us.mu.Unlock()
	for _, p := range us.paths {
		if p == ev.Name {
			us.pending[p] = time.Now()
			return
		}
	}
}

func (us *UserSources) processSettled() {
	us.mu.Lock()
	now := time.Now()
	var settled []string
	for p, at := range us.pending {
		if now.Sub(at) >= us.debounce {
			settled = append(settled, p)
			delete(us.pending, p)
		}
	}
	us.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	for _, p := range settled {
		us.load(p)
	}
	if us.onChange != nil {
		us.onChange(us.Sources())
	}
}

func (us *UserSources) load(path string) {
	src, err := LoadUserSource(path)
	us.mu.Lock()
	defer us.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			delete(us.sources, path)
			logging.CodegenDebug("user source %s not present", path)
			return
		}
		logging.CodegenWarn("user source %s: %v", path, err)
		return
	}
	us.sources[path] = src
	logging.CodegenDebug("loaded user source %s (%d lines)", path, src.RevealLine)
}
