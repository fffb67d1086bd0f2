// Package watchers detects git state changes (staging, commits, branch
// switches) per working tree and fans debounced notifications out to any
// number of subscribers.
package watchers

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gitsync/internal/git/repo"
	"gitsync/internal/logging"
)

const (
	// DefaultDebounce is how long a burst of raw events is coalesced
	// before the single notification fires.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultPollInterval paces the stat-polling fallback.
	DefaultPollInterval = time.Second
)

// Watcher monitors one working tree's git metadata (the index file and the
// HEAD reference) and invokes a callback at most once per burst of activity.
// The event-driven strategy is preferred; stat polling is the fallback.
type Watcher struct {
	worktree  string
	indexPath string
	headPath  string
	debounce  time.Duration
	pollEvery time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	running  bool
	gen      uint64
	onChange func()
	pending  bool
	timer    *time.Timer
	fsw      *fsnotify.Watcher
	stopPoll chan struct{}
	indexMod time.Time
	headMod  time.Time
}

// NewWatcher builds a watcher for worktreePath. The metadata directory is
// resolved once here; linked working trees (a .git file naming the real
// directory) are followed. Resolution failure leaves the watcher inert:
// Start then monitors nothing rather than failing the caller.
func NewWatcher(worktreePath string, debounce, pollEvery time.Duration, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if pollEvery <= 0 {
		pollEvery = DefaultPollInterval
	}
	w := &Watcher{
		worktree:  worktreePath,
		debounce:  debounce,
		pollEvery: pollEvery,
		logger:    logger,
	}
	gitdir, err := repo.ResolveGitDir(worktreePath)
	if err != nil {
		logger.Warn("gitdir resolution failed, watcher inert", "path", worktreePath, "error", err)
		return w
	}
	w.indexPath = filepath.Join(gitdir, "index")
	w.headPath = filepath.Join(gitdir, "HEAD")
	return w
}

// Start begins monitoring and registers the change callback. Calling Start
// on a running watcher is a no-op.
func (w *Watcher) Start(onChange func()) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.gen++
	w.onChange = onChange
	w.mu.Unlock()

	if w.indexPath == "" {
		return
	}
	if w.startEvents() {
		return
	}
	w.startPolling()
}

// Stop cancels monitoring, pending debounce timers, and held OS resources,
// and clears internal state so the watcher can be restarted fresh. No
// callback fires after Stop returns, even if its delay was already running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.gen++
	w.onChange = nil
	w.pending = false
	w.indexMod = time.Time{}
	w.headMod = time.Time{}
	timer := w.timer
	w.timer = nil
	fsw := w.fsw
	w.fsw = nil
	stopPoll := w.stopPoll
	w.stopPoll = nil
	w.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if fsw != nil {
		_ = fsw.Close()
	}
	if stopPoll != nil {
		close(stopPoll)
	}
}

// startEvents attempts the event-driven strategy. It watches the metadata
// directory rather than the two files directly: git replaces index and HEAD
// by rename, which would silently drop a per-file watch.
func (w *Watcher) startEvents() bool {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("event watcher unavailable, falling back to polling", "path", w.worktree, "error", err)
		return false
	}
	if err := fsw.Add(filepath.Dir(w.indexPath)); err != nil {
		w.logger.Warn("event registration failed, falling back to polling", "path", w.worktree, "error", err)
		_ = fsw.Close()
		return false
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = fsw.Close()
		return true
	}
	w.fsw = fsw
	w.mu.Unlock()
	go w.observe(fsw)
	return true
}

func (w *Watcher) observe(fsw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.noteChange()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "path", w.worktree, "error", err)
		}
	}
}

// relevant filters directory events down to the two files that encode
// staging and branch state.
func (w *Watcher) relevant(name string) bool {
	switch filepath.Base(name) {
	case "index", "HEAD":
		return true
	}
	return false
}

// startPolling begins the fallback loop. The first stat of each file only
// establishes a baseline and never counts as a change.
func (w *Watcher) startPolling() {
	stop := make(chan struct{})
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.stopPoll = stop
	w.indexMod = mtime(w.indexPath)
	w.headMod = mtime(w.headPath)
	w.mu.Unlock()
	go w.poll(stop)
}

func (w *Watcher) poll(stop chan struct{}) {
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if w.compareStamps() {
				w.noteChange()
			}
		}
	}
}

// compareStamps stats both files and reports whether either moved past its
// last-observed modification time.
func (w *Watcher) compareStamps() bool {
	idx := mtime(w.indexPath)
	head := mtime(w.headPath)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return false
	}
	changed := false
	if !idx.IsZero() {
		if !w.indexMod.IsZero() && idx.After(w.indexMod) {
			changed = true
		}
		w.indexMod = idx
	}
	if !head.IsZero() {
		if !w.headMod.IsZero() && head.After(w.headMod) {
			changed = true
		}
		w.headMod = head
	}
	return changed
}

// noteChange implements front-debouncing: the first observation in a burst
// arms a one-shot timer, later observations are absorbed by the pending
// flag, and the callback fires within one debounce interval of the first
// observation no matter how long the burst continues.
func (w *Watcher) noteChange() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running || w.pending {
		return
	}
	w.pending = true
	gen := w.gen
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(gen) })
}

func (w *Watcher) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.running {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.timer = nil
	cb := w.onChange
	w.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func mtime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
