// Package giterr maps failures from the underlying git plumbing into a
// closed set of typed error kinds that callers can switch on.
package giterr

import (
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Kind identifies one failure class.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotARepository
	KindRepositoryPathMissing
	KindRepositoryCorrupted
	KindWorktreeNotFound
	KindWorktreeAlreadyExists
	KindWorktreeLocked
	KindBranchNotFound
	KindBranchAlreadyExists
	KindReferenceNotFound
	KindMergeConflict
	KindUncommittedChanges
	KindNetwork
	KindAuthenticationFailed
	KindInvalidPath
	KindIndex
	KindCheckout
)

func (k Kind) String() string {
	switch k {
	case KindNotARepository:
		return "not a repository"
	case KindRepositoryPathMissing:
		return "repository path missing"
	case KindRepositoryCorrupted:
		return "repository corrupted"
	case KindWorktreeNotFound:
		return "worktree not found"
	case KindWorktreeAlreadyExists:
		return "worktree already exists"
	case KindWorktreeLocked:
		return "worktree locked"
	case KindBranchNotFound:
		return "branch not found"
	case KindBranchAlreadyExists:
		return "branch already exists"
	case KindReferenceNotFound:
		return "reference not found"
	case KindMergeConflict:
		return "merge conflict"
	case KindUncommittedChanges:
		return "uncommitted changes"
	case KindNetwork:
		return "network error"
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindInvalidPath:
		return "invalid path"
	case KindIndex:
		return "index error"
	case KindCheckout:
		return "checkout error"
	default:
		return "unknown git error"
	}
}

// Error is a classified git failure. Code is only meaningful for
// KindUnknown results produced from raw process exit codes.
type Error struct {
	Kind    Kind
	Code    int
	Context string
	Message string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Context
	}
	if msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two taxonomy errors by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a taxonomy error directly, for callers that already know the kind.
func New(kind Kind, context, message string) *Error {
	return &Error{Kind: kind, Context: context, Message: message}
}

// KindOf extracts the kind from any error, KindUnknown if it is not ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Map classifies an error from the plumbing library using the context string
// describing the attempted operation ("commit", "worktree", "branch", ...).
// A nil err maps to nil. Errors already classified pass through unchanged.
func Map(err error, context string) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = context
	}
	e := &Error{Context: context, Message: msg, cause: err}

	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		e.Kind = KindNotARepository
	case errors.Is(err, git.ErrRepositoryAlreadyExists):
		e.Kind = disambiguateExists(context)
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound):
		e.Kind = disambiguateNotFound(context)
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		e.Kind = KindAuthenticationFailed
	case errors.Is(err, transport.ErrRepositoryNotFound):
		e.Kind = KindNotARepository
	case errors.Is(err, git.ErrUnstagedChanges):
		e.Kind = KindUncommittedChanges
	case errors.Is(err, git.ErrEmptyCommit):
		e.Kind = KindIndex
	default:
		e.Kind = classifyMessage(msg, context)
	}
	return e
}

// Check interprets a raw integer return code the way the plumbing layer
// reports them: zero and positive codes are success (or a count) and yield
// nil, negative codes are classified through the context string.
func Check(code int, context string) error {
	if code >= 0 {
		return nil
	}
	e := &Error{Kind: classifyMessage("", context), Code: code, Context: context}
	if e.Kind == KindUnknown {
		e.Message = fmt.Sprintf("git operation %q failed with code %d", context, code)
	}
	return e
}

// MapExec classifies a git binary failure from its stderr output. The exit
// code is preserved so unknown failures stay diagnosable.
func MapExec(code int, stderr, context string) error {
	msg := strings.TrimSpace(stderr)
	e := &Error{Code: code, Context: context, Message: msg}
	e.Kind = classifyMessage(msg, context)
	if e.Message == "" {
		e.Message = fmt.Sprintf("git %s exited with code %d", context, code)
	}
	return e
}

// disambiguateNotFound resolves the ambiguous not-found code by what the
// caller says it was doing.
func disambiguateNotFound(context string) Kind {
	c := strings.ToLower(context)
	switch {
	case strings.Contains(c, "worktree"):
		return KindWorktreeNotFound
	case strings.Contains(c, "branch"):
		return KindBranchNotFound
	default:
		return KindReferenceNotFound
	}
}

func disambiguateExists(context string) Kind {
	c := strings.ToLower(context)
	switch {
	case strings.Contains(c, "worktree"):
		return KindWorktreeAlreadyExists
	case strings.Contains(c, "branch"):
		return KindBranchAlreadyExists
	default:
		return KindInvalidPath
	}
}

func classifyMessage(msg, context string) Kind {
	m := strings.ToLower(msg)
	switch {
	case m == "":
		return disambiguateNotFoundOrUnknown(context)
	case strings.Contains(m, "not a git repository"),
		strings.Contains(m, "repository does not exist"):
		return KindNotARepository
	case strings.Contains(m, "no such file or directory") &&
		strings.Contains(strings.ToLower(context), "repository"):
		return KindRepositoryPathMissing
	case strings.Contains(m, "object file") && strings.Contains(m, "empty"),
		strings.Contains(m, "corrupt"):
		return KindRepositoryCorrupted
	case strings.Contains(m, "is not a working tree"),
		strings.Contains(m, "no working trees"):
		return KindWorktreeNotFound
	case strings.Contains(m, "already exists") || strings.Contains(m, "already registered"):
		return disambiguateExists(context)
	case strings.Contains(m, "locked"):
		return KindWorktreeLocked
	case strings.Contains(m, "not found"), strings.Contains(m, "unknown revision"),
		strings.Contains(m, "bad revision"):
		return disambiguateNotFound(context)
	case strings.Contains(m, "conflict"):
		return KindMergeConflict
	case strings.Contains(m, "uncommitted changes"),
		strings.Contains(m, "contains modified or untracked files"),
		strings.Contains(m, "would be overwritten"):
		return KindUncommittedChanges
	case strings.Contains(m, "authentication"), strings.Contains(m, "permission denied"),
		strings.Contains(m, "could not read username"):
		return KindAuthenticationFailed
	case strings.Contains(m, "could not resolve host"), strings.Contains(m, "connection"),
		strings.Contains(m, "network"), strings.Contains(m, "timed out"):
		return KindNetwork
	case strings.Contains(m, "invalid path"), strings.Contains(m, "invalid argument"):
		return KindInvalidPath
	case strings.Contains(m, "index"):
		return KindIndex
	case strings.Contains(m, "checkout"):
		return KindCheckout
	default:
		return KindUnknown
	}
}

func disambiguateNotFoundOrUnknown(context string) Kind {
	c := strings.ToLower(context)
	switch {
	case strings.Contains(c, "worktree"):
		return KindWorktreeNotFound
	case strings.Contains(c, "branch"):
		return KindBranchNotFound
	case strings.Contains(c, "reference"), strings.Contains(c, "commit"):
		return KindReferenceNotFound
	default:
		return KindUnknown
	}
}
