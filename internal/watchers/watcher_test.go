package watchers

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewWatcherResolvesGitDirDirectory(t *testing.T) {
	wt := t.TempDir()
	writeFile(t, filepath.Join(wt, ".git", "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 0, 0, nil)
	if got, want := w.indexPath, filepath.Join(wt, ".git", "index"); got != want {
		t.Fatalf("indexPath = %q, want %q", got, want)
	}
}

func TestNewWatcherFollowsLinkedWorktree(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "repo", ".git", "worktrees", "feature")
	writeFile(t, filepath.Join(real, "HEAD"), "ref: refs/heads/feature\n")

	linked := filepath.Join(base, "linked")
	if err := os.MkdirAll(linked, 0o755); err != nil {
		t.Fatalf("mkdir linked: %v", err)
	}
	writeFile(t, filepath.Join(linked, ".git"), "gitdir: "+real+"\n")

	w := NewWatcher(linked, 0, 0, nil)
	if got, want := w.indexPath, filepath.Join(real, "index"); got != want {
		t.Fatalf("linked worktree indexPath = %q, want %q", got, want)
	}
	if got, want := w.headPath, filepath.Join(real, "HEAD"); got != want {
		t.Fatalf("linked worktree headPath = %q, want %q", got, want)
	}
}

func TestNewWatcherInertWithoutRepository(t *testing.T) {
	w := NewWatcher(t.TempDir(), 0, 0, nil)
	if w.indexPath != "" {
		t.Fatalf("expected inert watcher, got indexPath %q", w.indexPath)
	}
	// Start on an inert watcher must be a silent no-op.
	w.Start(func() { t.Error("inert watcher must never fire") })
	w.Stop()
}

func TestDebounceCoalescesBurst(t *testing.T) {
	wt := t.TempDir()
	writeFile(t, filepath.Join(wt, ".git", "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 50*time.Millisecond, time.Hour, nil)
	var fired atomic.Int32
	w.mu.Lock()
	w.running = true
	w.onChange = func() { fired.Add(1) }
	w.mu.Unlock()
	defer w.Stop()

	for i := 0; i < 10; i++ {
		w.noteChange()
	}
	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("burst of 10 observations fired %d callbacks, want 1", got)
	}
}

func TestFrontDebounceFiresUnderSustainedActivity(t *testing.T) {
	wt := t.TempDir()
	writeFile(t, filepath.Join(wt, ".git", "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 50*time.Millisecond, time.Hour, nil)
	var fired atomic.Int32
	w.mu.Lock()
	w.running = true
	w.onChange = func() { fired.Add(1) }
	w.mu.Unlock()
	defer w.Stop()

	// Observations arriving faster than the debounce interval for several
	// intervals. A reset-on-every-observation debounce would starve; the
	// front debounce must keep firing.
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.noteChange()
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got < 2 {
		t.Fatalf("sustained activity fired %d callbacks, want at least 2", got)
	}
}

func TestStopCancelsPendingDebounce(t *testing.T) {
	wt := t.TempDir()
	writeFile(t, filepath.Join(wt, ".git", "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 50*time.Millisecond, time.Hour, nil)
	var fired atomic.Int32
	w.mu.Lock()
	w.running = true
	w.onChange = func() { fired.Add(1) }
	w.mu.Unlock()

	w.noteChange()
	w.Stop()
	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("callback fired %d times after Stop, want 0", got)
	}
}

func TestPollingDetectsModification(t *testing.T) {
	wt := t.TempDir()
	gitdir := filepath.Join(wt, ".git")
	writeFile(t, filepath.Join(gitdir, "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(gitdir, "index"), "stale")

	w := NewWatcher(wt, 20*time.Millisecond, 25*time.Millisecond, nil)
	var fired atomic.Int32
	w.mu.Lock()
	w.running = true
	w.gen++
	w.onChange = func() { fired.Add(1) }
	w.mu.Unlock()
	w.startPolling()
	defer w.Stop()

	// Give the loop one tick to pass with the baseline untouched.
	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("baseline observation counted as change, fired %d", got)
	}

	// Rewrite the index with a strictly later mtime.
	future := time.Now().Add(2 * time.Second)
	writeFile(t, filepath.Join(gitdir, "index"), "fresh")
	if err := os.Chtimes(filepath.Join(gitdir, "index"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := fired.Load(); got == 0 {
		t.Fatal("polling never reported the index modification")
	}
}

func TestEventStrategyDetectsIndexWrite(t *testing.T) {
	wt := t.TempDir()
	gitdir := filepath.Join(wt, ".git")
	writeFile(t, filepath.Join(gitdir, "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 30*time.Millisecond, time.Hour, nil)
	var fired atomic.Int32
	w.Start(func() { fired.Add(1) })
	defer w.Stop()

	// Simulate git writing the index via tmp-file-and-rename.
	tmp := filepath.Join(gitdir, "index.lock")
	writeFile(t, tmp, "staged entries")
	if err := os.Rename(tmp, filepath.Join(gitdir, "index")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatal("event strategy never reported the index write")
	}
}

func TestRestartAfterStop(t *testing.T) {
	wt := t.TempDir()
	gitdir := filepath.Join(wt, ".git")
	writeFile(t, filepath.Join(gitdir, "HEAD"), "ref: refs/heads/main\n")

	w := NewWatcher(wt, 20*time.Millisecond, time.Hour, nil)
	w.Start(func() {})
	w.Stop()

	var fired atomic.Int32
	w.Start(func() { fired.Add(1) })
	defer w.Stop()

	writeFile(t, filepath.Join(gitdir, "HEAD"), "ref: refs/heads/other\n")
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatal("restarted watcher never fired")
	}
}
