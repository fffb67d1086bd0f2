// Package status computes fast working-tree summaries (porcelain codes and
// per-file added/removed counts) via the git binary. Watch consumers use it
// to describe what changed when a notification fires, without paying for a
// full diff through the plumbing library.
package status

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gitsync/internal/git/runner"
)

// The well-known empty tree id, used to diff repositories without a HEAD.
const emptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// FileChange is one changed path with its porcelain code and line counts.
type FileChange struct {
	Path    string
	Status  string // porcelain code: M, A, D, R, ??
	Added   int
	Removed int
}

// Reader aggregates staged and unstaged changes for a working tree.
type Reader struct {
	r runner.Runner
}

// NewReader builds a Reader on top of r.
func NewReader(r runner.Runner) *Reader {
	return &Reader{r: r}
}

// Changes returns every staged or unstaged change under root, sorted by
// path. Binary files keep zero line counts.
func (s *Reader) Changes(ctx context.Context, root string) ([]FileChange, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("worktree path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat worktree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("worktree path %q is not a directory", root)
	}

	codes, err := s.porcelainCodes(ctx, root)
	if err != nil {
		return nil, err
	}

	// diff HEAD already represents the combined staged+unstaged change per
	// path; the --cached pass only contributes paths the first pass missed
	// (e.g. a staged deletion whose file was re-created in the worktree).
	// Summing both would double-count every staged change.
	counts, err := s.numstat(ctx, root, "diff", "--numstat", "HEAD")
	if err != nil {
		// No HEAD yet: diff against the empty tree instead.
		counts, err = s.numstat(ctx, root, "diff", "--numstat", emptyTreeHash)
		if err != nil {
			return nil, err
		}
	}
	cached, err := s.numstat(ctx, root, "diff", "--numstat", "--cached")
	if err != nil {
		return nil, err
	}
	for path, c := range cached {
		if _, ok := counts[path]; !ok {
			counts[path] = c
		}
	}

	seen := map[string]bool{}
	changes := make([]FileChange, 0, len(codes))
	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		fc := FileChange{Path: path, Status: codes[path]}
		if c, ok := counts[path]; ok {
			fc.Added, fc.Removed = c[0], c[1]
		}
		changes = append(changes, fc)
	}
	for p := range codes {
		add(p)
	}
	for p := range counts {
		add(p)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func (s *Reader) porcelainCodes(ctx context.Context, root string) (map[string]string, error) {
	out, err := s.r.Run(ctx, root, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	codes := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		code := strings.TrimSpace(line[:2])
		path := strings.TrimSpace(line[3:])
		if code == "" || path == "" {
			continue
		}
		// Renames report "old -> new"; attribute the change to new.
		if i := strings.LastIndex(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		if strings.HasPrefix(path, "\"") {
			if decoded, err := strconv.Unquote(path); err == nil {
				path = decoded
			}
		}
		codes[path] = code
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan git status: %w", err)
	}
	return codes, nil
}

func (s *Reader) numstat(ctx context.Context, root string, args ...string) (map[string][2]int, error) {
	out, err := s.r.Run(ctx, root, args...)
	if err != nil {
		return nil, err
	}
	counts := map[string][2]int{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", 3)
		if len(fields) != 3 {
			continue
		}
		// Binary files report "-" for both counts.
		added, _ := strconv.Atoi(fields[0])
		removed, _ := strconv.Atoi(fields[1])
		path := fields[2]
		if i := strings.LastIndex(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		counts[path] = [2]int{added, removed}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan git numstat: %w", err)
	}
	return counts, nil
}
