// Package repo wraps a single open git repository and exposes discovery,
// lifecycle, and read-only accessors over it.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"

	"gitsync/internal/git/giterr"
)

// ErrClosed is returned for any use of a handle after Close.
var ErrClosed = errors.New("repository handle is closed")

// fallbackName is used when no committer identity is configured.
const fallbackName = "Unknown"

// Signature is a fully materialized name/email/timestamp triple.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Handle owns one open repository. It is not safe for concurrent use;
// callers run one operation at a time per handle.
type Handle struct {
	path string

	mu     sync.Mutex
	repo   *git.Repository
	closed bool
}

// Open opens an existing repository at path.
func Open(path string) (*Handle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, giterr.New(giterr.KindRepositoryPathMissing, "open repository", "no such path: "+path)
		}
		return nil, giterr.Map(err, "open repository")
	}
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, giterr.Map(err, "open repository")
	}
	return &Handle{path: path, repo: r}, nil
}

// Init creates a new repository at path.
func Init(path string, bare bool) (*Handle, error) {
	r, err := git.PlainInit(path, bare)
	if err != nil {
		return nil, giterr.Map(err, "init repository")
	}
	return &Handle{path: path, repo: r}, nil
}

// Clone clones url into localPath and returns a handle on the result.
func Clone(url, localPath string) (*Handle, error) {
	r, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, giterr.Map(err, "clone repository")
	}
	return &Handle{path: localPath, repo: r}, nil
}

// Discover walks upward from fromPath and returns the enclosing
// working-tree root, or a not-a-repository error.
func Discover(fromPath string) (string, error) {
	start, err := filepath.Abs(fromPath)
	if err != nil {
		return "", giterr.Map(err, "discover repository")
	}
	if fi, err := os.Stat(start); err == nil && !fi.IsDir() {
		start = filepath.Dir(start)
	}
	cur := start
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", giterr.New(giterr.KindNotARepository, "discover repository", "no repository enclosing "+fromPath)
}

// IsRepository reports whether path sits inside a git working tree.
func IsRepository(path string) bool {
	_, err := Discover(path)
	return err == nil
}

// ResolveGitDir returns the metadata directory for a working tree. A .git
// directory is used as-is; a .git file (linked working tree) is followed to
// the real metadata directory it names.
func ResolveGitDir(worktreePath string) (string, error) {
	entry := filepath.Join(worktreePath, ".git")
	fi, err := os.Stat(entry)
	if err != nil {
		return "", giterr.New(giterr.KindNotARepository, "resolve gitdir", "no .git entry under "+worktreePath)
	}
	if fi.IsDir() {
		return entry, nil
	}
	data, err := os.ReadFile(entry)
	if err != nil {
		return "", giterr.Map(err, "resolve gitdir")
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", giterr.New(giterr.KindRepositoryCorrupted, "resolve gitdir", "malformed .git file at "+entry)
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if !filepath.IsAbs(target) {
		target = filepath.Join(worktreePath, target)
	}
	return filepath.Clean(target), nil
}

// Path returns the working-tree root the handle was opened against.
func (h *Handle) Path() string { return h.path }

// Repo returns the underlying repository object for porcelain operations.
func (h *Handle) Repo() (*git.Repository, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	return h.repo, nil
}

// Close releases the underlying repository. Safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.repo = nil
	h.closed = true
}

// IsBare reports whether the repository has no working tree.
func (h *Handle) IsBare() (bool, error) {
	r, err := h.Repo()
	if err != nil {
		return false, err
	}
	cfg, err := r.Config()
	if err != nil {
		return false, giterr.Map(err, "read repository config")
	}
	return cfg.Core.IsBare, nil
}

// IsEmpty reports whether the repository has no commits yet.
func (h *Handle) IsEmpty() (bool, error) {
	r, err := h.Repo()
	if err != nil {
		return false, err
	}
	_, err = r.Head()
	if err == nil {
		return false, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true, nil
	}
	return false, giterr.Map(err, "read HEAD")
}

// IsHeadDetached reports whether HEAD points directly at a commit.
func (h *Handle) IsHeadDetached() (bool, error) {
	r, err := h.Repo()
	if err != nil {
		return false, err
	}
	ref, err := r.Reference(plumbing.HEAD, false)
	if err != nil {
		return false, giterr.Map(err, "read HEAD reference")
	}
	return ref.Type() == plumbing.HashReference, nil
}

// Workdir returns the working-tree root, empty for bare repositories.
func (h *Handle) Workdir() (string, error) {
	r, err := h.Repo()
	if err != nil {
		return "", err
	}
	wt, err := r.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return "", nil
		}
		return "", giterr.Map(err, "resolve workdir")
	}
	return wt.Filesystem.Root(), nil
}

// Gitdir returns the metadata directory backing this working tree,
// empty for bare repositories (where path is the metadata directory).
func (h *Handle) Gitdir() (string, error) {
	bare, err := h.IsBare()
	if err != nil {
		return "", err
	}
	if bare {
		return h.path, nil
	}
	return ResolveGitDir(h.path)
}

// CurrentBranch returns the short name of the checked-out branch. A
// detached HEAD is a legitimate state and yields an empty name, not an
// error. An unborn HEAD (empty repository) still names its target branch.
func (h *Handle) CurrentBranch() (string, error) {
	r, err := h.Repo()
	if err != nil {
		return "", err
	}
	ref, err := r.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", giterr.Map(err, "read HEAD reference")
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", nil
	}
	target := ref.Target()
	if !target.IsBranch() {
		return "", nil
	}
	return target.Short(), nil
}

// DefaultSignature builds the committer identity from configuration.
// Missing identity fields fall back to placeholders instead of failing.
func (h *Handle) DefaultSignature() (Signature, error) {
	r, err := h.Repo()
	if err != nil {
		return Signature{}, err
	}
	sig := Signature{Name: fallbackName, When: time.Now()}
	cfg, err := r.ConfigScoped(gitconfig.SystemScope)
	if err != nil {
		// Identity is best-effort; unconfigured users still get to commit.
		return sig, nil
	}
	if strings.TrimSpace(cfg.User.Name) != "" {
		sig.Name = cfg.User.Name
	}
	sig.Email = cfg.User.Email
	return sig, nil
}

// Index returns the staging-area snapshot. The caller uses it and lets it
// go; it does not stay coherent with later index writes.
func (h *Handle) Index() (*index.Index, error) {
	r, err := h.Repo()
	if err != nil {
		return nil, err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return nil, giterr.Map(err, "read index")
	}
	return idx, nil
}

// Head returns the resolved HEAD reference.
func (h *Handle) Head() (*plumbing.Reference, error) {
	r, err := h.Repo()
	if err != nil {
		return nil, err
	}
	ref, err := r.Head()
	if err != nil {
		return nil, giterr.Map(err, "read HEAD reference")
	}
	return ref, nil
}

// Config returns the repository-local configuration.
func (h *Handle) Config() (*gitconfig.Config, error) {
	r, err := h.Repo()
	if err != nil {
		return nil, err
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, giterr.Map(err, "read repository config")
	}
	return cfg, nil
}
