// Package worktrees manages linked working trees through the git binary;
// the plumbing library has no worktree porcelain.
package worktrees

import (
	"context"
	"strings"

	"gitsync/internal/git/runner"
)

// Info describes one working tree as reported by git worktree list.
type Info struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
	Locked   bool
}

// Manager drives worktree add/remove/list/prune for one repository root.
type Manager struct {
	r runner.Runner
}

// NewManager builds a Manager on top of r.
func NewManager(r runner.Runner) *Manager {
	return &Manager{r: r}
}

// Add creates a linked working tree at path on a new branch cut from
// baseRef (current HEAD when baseRef is empty). Errors surface classified:
// an occupied path reports worktree-already-exists.
func (m *Manager) Add(ctx context.Context, repoRoot, path, branch, baseRef string, force bool) error {
	args := []string{"worktree", "add"}
	if force {
		args = append(args, "--force")
	}
	if strings.TrimSpace(branch) != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, path)
	if strings.TrimSpace(baseRef) != "" {
		args = append(args, baseRef)
	}
	_, err := m.r.Run(ctx, repoRoot, args...)
	return err
}

// Remove detaches the working tree at path from the repository. A locked
// worktree reports worktree-locked unless force is set.
func (m *Manager) Remove(ctx context.Context, repoRoot, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := m.r.Run(ctx, repoRoot, args...)
	return err
}

// Prune drops stale worktree registrations.
func (m *Manager) Prune(ctx context.Context, repoRoot string) error {
	_, err := m.r.Run(ctx, repoRoot, "worktree", "prune")
	return err
}

// List returns every working tree attached to the repository, the primary
// checkout first.
func (m *Manager) List(ctx context.Context, repoRoot string) ([]Info, error) {
	out, err := m.r.Run(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

// parsePorcelain reads the block-per-worktree format: attribute lines,
// blocks separated by a blank line.
func parsePorcelain(out string) []Info {
	var (
		list []Info
		cur  *Info
	)
	flush := func() {
		if cur != nil {
			list = append(list, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &Info{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			// Attribute line without a worktree header; skip.
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "bare":
			cur.Bare = true
		case line == "detached":
			cur.Detached = true
		case line == "locked" || strings.HasPrefix(line, "locked "):
			cur.Locked = true
		}
	}
	flush()
	return list
}
