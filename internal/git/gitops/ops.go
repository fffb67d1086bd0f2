// Package gitops layers porcelain-level git operations (commit, log, diff
// stats, reset) over an open repository handle. The package is stateless;
// all state lives in the repository reached through the handle.
package gitops

import (
	"errors"
	"io"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"gitsync/internal/git/giterr"
	"gitsync/internal/git/repo"
)

// shortHashLen matches the abbreviation git porcelain prints by default.
const shortHashLen = 7

// CommitInfo is a value snapshot of one commit, fully copied out of the
// repository so it stays valid after the producing handle is released.
type CommitInfo struct {
	OID         string
	ShortOID    string
	Message     string
	Summary     string
	Author      repo.Signature
	Committer   repo.Signature
	ParentCount int
	ParentOIDs  []string
	When        time.Time
}

// DiffStats aggregates one commit's changes against its first parent.
type DiffStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// ResetMode selects how much state Reset rewinds.
type ResetMode int

const (
	// ResetSoft moves HEAD only.
	ResetSoft ResetMode = iota
	// ResetMixed moves HEAD and resets the index. This is the default.
	ResetMixed
	// ResetHard moves HEAD, resets the index, and force-overwrites the
	// working tree, discarding uncommitted modifications.
	ResetHard
)

// ParseResetMode maps a mode name to a ResetMode, defaulting to mixed.
func ParseResetMode(name string) ResetMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "soft":
		return ResetSoft
	case "hard":
		return ResetHard
	default:
		return ResetMixed
	}
}

// Commit writes the index to a tree and commits it on top of the current
// HEAD (a root commit when the repository is empty). With amend, the HEAD
// commit is rewritten in place and its original author preserved. Requires
// at least one staged entry unless amending or committing for the first
// time. Returns the new commit's full hex identifier.
func Commit(h *repo.Handle, message string, amend bool) (string, error) {
	r, err := h.Repo()
	if err != nil {
		return "", err
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", giterr.Map(err, "commit")
	}

	empty, err := h.IsEmpty()
	if err != nil {
		return "", err
	}
	if !amend && !empty {
		staged, err := hasStagedEntries(wt)
		if err != nil {
			return "", err
		}
		if !staged {
			return "", giterr.New(giterr.KindIndex, "commit", "no staged changes to commit")
		}
	}
	if amend && empty {
		return "", giterr.New(giterr.KindReferenceNotFound, "amend commit", "cannot amend: repository has no commits")
	}

	def, err := h.DefaultSignature()
	if err != nil {
		return "", err
	}
	committer := &object.Signature{Name: def.Name, Email: def.Email, When: time.Now()}
	author := committer

	opts := &git.CommitOptions{Committer: committer, Amend: amend}
	if amend {
		headRef, err := r.Head()
		if err != nil {
			return "", giterr.Map(err, "amend commit")
		}
		headCommit, err := r.CommitObject(headRef.Hash())
		if err != nil {
			return "", giterr.Map(err, "amend commit")
		}
		// Amending keeps the original author; only the committer moves.
		orig := headCommit.Author
		author = &orig
		opts.AllowEmptyCommits = true
	}
	opts.Author = author

	hash, err := wt.Commit(message, opts)
	if err != nil {
		return "", giterr.Map(err, "commit")
	}
	return hash.String(), nil
}

// Log walks history from HEAD newest-first, skipping skip commits and
// returning up to limit snapshots (limit <= 0 means no limit). An empty
// repository is a normal state and yields an empty slice.
func Log(h *repo.Handle, limit, skip int) ([]CommitInfo, error) {
	r, err := h.Repo()
	if err != nil {
		return nil, err
	}
	if _, err := r.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []CommitInfo{}, nil
		}
		return nil, giterr.Map(err, "log")
	}

	iter, err := r.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, giterr.Map(err, "log")
	}
	defer iter.Close()

	out := []CommitInfo{}
	skipped := 0
	for {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, giterr.Map(err, "log")
		}
		if skipped < skip {
			skipped++
			continue
		}
		out = append(out, newCommitInfo(c))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetCommit looks up one commit by its full hex identifier.
func GetCommit(h *repo.Handle, hash string) (CommitInfo, error) {
	c, err := lookupCommit(h, hash)
	if err != nil {
		return CommitInfo{}, err
	}
	return newCommitInfo(c), nil
}

// CommitStats computes files-changed/insertions/deletions for the named
// commit versus its first parent, or versus an empty tree for a root commit.
func CommitStats(h *repo.Handle, hash string) (DiffStats, error) {
	c, err := lookupCommit(h, hash)
	if err != nil {
		return DiffStats{}, err
	}
	fileStats, err := c.Stats()
	if err != nil {
		return DiffStats{}, giterr.Map(err, "commit stats")
	}
	stats := DiffStats{FilesChanged: len(fileStats)}
	for _, fs := range fileStats {
		stats.Insertions += fs.Addition
		stats.Deletions += fs.Deletion
	}
	return stats, nil
}

// Reset resolves target (any revision expression) to a commit and rewinds
// to it under the given mode. Hard resets force the checkout so conflicting
// uncommitted changes cannot block them.
func Reset(h *repo.Handle, target string, mode ResetMode) error {
	r, err := h.Repo()
	if err != nil {
		return err
	}
	hash, err := r.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return giterr.Map(err, "reset reference")
	}
	wt, err := r.Worktree()
	if err != nil {
		return giterr.Map(err, "reset")
	}
	opts := &git.ResetOptions{Commit: *hash}
	switch mode {
	case ResetSoft:
		opts.Mode = git.SoftReset
	case ResetHard:
		opts.Mode = git.HardReset
	default:
		opts.Mode = git.MixedReset
	}
	if err := wt.Reset(opts); err != nil {
		return giterr.Map(err, "reset")
	}
	return nil
}

func lookupCommit(h *repo.Handle, hash string) (*object.Commit, error) {
	r, err := h.Repo()
	if err != nil {
		return nil, err
	}
	if !plumbing.IsHash(hash) {
		return nil, giterr.New(giterr.KindReferenceNotFound, "commit lookup", "not a valid object id: "+hash)
	}
	c, err := r.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, giterr.Map(err, "commit lookup")
	}
	return c, nil
}

func newCommitInfo(c *object.Commit) CommitInfo {
	oid := c.Hash.String()
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return CommitInfo{
		OID:         oid,
		ShortOID:    oid[:shortHashLen],
		Message:     c.Message,
		Summary:     summary(c.Message),
		Author:      repo.Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:   repo.Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		ParentCount: c.NumParents(),
		ParentOIDs:  parents,
		When:        c.Committer.When,
	}
}

func summary(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return strings.TrimSpace(message)
}

func hasStagedEntries(wt *git.Worktree) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, giterr.Map(err, "read status")
	}
	for _, fs := range status {
		switch fs.Staging {
		case git.Unmodified, git.Untracked:
		default:
			return true, nil
		}
	}
	return false, nil
}
