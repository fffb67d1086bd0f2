package worktrees

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"gitsync/internal/git/giterr"
	"gitsync/internal/git/runner"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, string(out))
		}
	}
	run("init")
	run("config", "user.email", "you@example.com")
	run("config", "user.name", "Your Name")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", "a.txt")
	run("commit", "-m", "init")
	return dir
}

func TestParsePorcelain(t *testing.T) {
	out := "worktree /repo\nHEAD 0123456789abcdef0123456789abcdef01234567\nbranch refs/heads/main\n\n" +
		"worktree /repo-wt\nHEAD fedcba9876543210fedcba9876543210fedcba98\ndetached\nlocked reason\n\n"
	got := parsePorcelain(out)
	if len(got) != 2 {
		t.Fatalf("parsed %d worktrees, want 2", len(got))
	}
	if got[0].Path != "/repo" || got[0].Branch != "main" {
		t.Fatalf("primary worktree parsed wrong: %+v", got[0])
	}
	if !got[1].Detached || !got[1].Locked {
		t.Fatalf("linked worktree flags parsed wrong: %+v", got[1])
	}
}

func TestAddListRemove(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoRoot := initRepo(t)
	m := NewManager(runner.NewExecRunner(""))

	wtPath := filepath.Join(t.TempDir(), "feature-wt")
	if err := m.Add(ctx, repoRoot, wtPath, "feature-x", "", false); err != nil {
		t.Fatalf("add worktree: %v", err)
	}

	list, err := m.List(ctx, repoRoot)
	if err != nil {
		t.Fatalf("list worktrees: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("listed %d worktrees, want 2", len(list))
	}

	if err := m.Remove(ctx, repoRoot, wtPath, false); err != nil {
		t.Fatalf("remove worktree: %v", err)
	}
	if err := m.Prune(ctx, repoRoot); err != nil {
		t.Fatalf("prune worktrees: %v", err)
	}
}

func TestAddExistingPathClassified(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoRoot := initRepo(t)
	m := NewManager(runner.NewExecRunner(""))

	wtPath := filepath.Join(t.TempDir(), "wt")
	if err := m.Add(ctx, repoRoot, wtPath, "dup-branch", "", false); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := m.Add(ctx, repoRoot, wtPath, "dup-branch-2", "", false)
	if err == nil {
		t.Fatal("second add on same path should fail")
	}
	var e *giterr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected taxonomy error, got %T: %v", err, err)
	}
	if e.Kind != giterr.KindWorktreeAlreadyExists {
		t.Fatalf("kind = %v, want worktree-already-exists (stderr: %s)", e.Kind, e.Message)
	}
}

func TestRemoveMissingClassified(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoRoot := initRepo(t)
	m := NewManager(runner.NewExecRunner(""))

	err := m.Remove(ctx, repoRoot, filepath.Join(t.TempDir(), "nope"), false)
	if err == nil {
		t.Fatal("removing a missing worktree should fail")
	}
	if kind := giterr.KindOf(err); kind != giterr.KindWorktreeNotFound {
		t.Fatalf("kind = %v, want worktree-not-found", kind)
	}
}
