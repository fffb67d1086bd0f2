package giterr

import (
	"errors"
	"fmt"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

func TestMapSentinelErrors(t *testing.T) {
	cases := []struct {
		err     error
		context string
		want    Kind
	}{
		{git.ErrRepositoryNotExists, "open repository", KindNotARepository},
		{git.ErrRepositoryAlreadyExists, "init repository", KindInvalidPath},
		{plumbing.ErrReferenceNotFound, "branch", KindBranchNotFound},
		{plumbing.ErrReferenceNotFound, "worktree", KindWorktreeNotFound},
		{plumbing.ErrReferenceNotFound, "reference", KindReferenceNotFound},
		{plumbing.ErrObjectNotFound, "commit", KindReferenceNotFound},
		{transport.ErrAuthenticationRequired, "clone", KindAuthenticationFailed},
		{git.ErrUnstagedChanges, "checkout", KindUncommittedChanges},
	}
	for _, tc := range cases {
		got := Map(tc.err, tc.context)
		if KindOf(got) != tc.want {
			t.Fatalf("Map(%v, %q) kind = %v, want %v", tc.err, tc.context, KindOf(got), tc.want)
		}
	}
}

func TestMapNilAndPassthrough(t *testing.T) {
	if Map(nil, "anything") != nil {
		t.Fatal("Map(nil) should be nil")
	}
	orig := New(KindWorktreeLocked, "worktree", "locked by other process")
	if got := Map(orig, "other context"); got != orig {
		t.Fatalf("already-classified error should pass through, got %v", got)
	}
}

func TestMapUnknownKeepsMessage(t *testing.T) {
	raw := errors.New("something nobody anticipated")
	got := Map(raw, "commit")
	var e *Error
	if !errors.As(got, &e) {
		t.Fatalf("expected *Error, got %T", got)
	}
	if e.Kind != KindUnknown {
		t.Fatalf("kind = %v, want unknown", e.Kind)
	}
	if e.Message != "something nobody anticipated" {
		t.Fatalf("message lost: %q", e.Message)
	}
	if !errors.Is(got, raw) {
		t.Fatal("cause not preserved for errors.Is")
	}
}

func TestMapWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("resolve base: %w", plumbing.ErrReferenceNotFound)
	if got := KindOf(Map(wrapped, "branch")); got != KindBranchNotFound {
		t.Fatalf("wrapped sentinel kind = %v, want branch-not-found", got)
	}
}

func TestCheck(t *testing.T) {
	if err := Check(0, "commit"); err != nil {
		t.Fatalf("Check(0) = %v, want nil", err)
	}
	if err := Check(12, "log count"); err != nil {
		t.Fatalf("Check(positive) = %v, want nil", err)
	}
	err := Check(-3, "worktree lookup")
	if KindOf(err) != KindWorktreeNotFound {
		t.Fatalf("Check(-3, worktree) kind = %v", KindOf(err))
	}
	var e *Error
	if !errors.As(err, &e) || e.Code != -3 {
		t.Fatalf("raw code not preserved: %+v", err)
	}
}

func TestMapExecStderrClassification(t *testing.T) {
	cases := []struct {
		stderr  string
		context string
		want    Kind
	}{
		{"fatal: not a git repository (or any of the parent directories): .git", "status", KindNotARepository},
		{"fatal: '/tmp/wt' already exists", "worktree add", KindWorktreeAlreadyExists},
		{"fatal: working tree is locked", "worktree remove", KindWorktreeLocked},
		{"fatal: '/tmp/wt' is not a working tree", "worktree remove", KindWorktreeNotFound},
		{"error: Your local changes to the following files would be overwritten", "checkout", KindUncommittedChanges},
		{"fatal: could not resolve host: example.com", "clone", KindNetwork},
		{"gibberish nobody has seen", "mystery", KindUnknown},
	}
	for _, tc := range cases {
		err := MapExec(128, tc.stderr, tc.context)
		if KindOf(err) != tc.want {
			t.Fatalf("MapExec(%q, %q) kind = %v, want %v", tc.stderr, tc.context, KindOf(err), tc.want)
		}
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	a := New(KindBranchNotFound, "branch", "no such branch: feature")
	b := New(KindBranchNotFound, "branch", "different message")
	if !errors.Is(a, b) {
		t.Fatal("same-kind taxonomy errors should match")
	}
	c := New(KindWorktreeLocked, "worktree", "")
	if errors.Is(a, c) {
		t.Fatal("different kinds must not match")
	}
}
