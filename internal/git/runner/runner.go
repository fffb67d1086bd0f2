// Package runner executes the git binary for the few operations the
// plumbing library does not cover (linked worktree management, porcelain
// status fast-paths).
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"

	"gitsync/internal/git/giterr"
)

// Runner abstracts executing one git invocation rooted at a directory.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs the configured git binary. Failures come back already
// classified through the error taxonomy, with the process exit code kept.
type ExecRunner struct {
	GitBin string
}

// NewExecRunner builds a runner; gitBin defaults to "git" when empty.
func NewExecRunner(gitBin string) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return &ExecRunner{GitBin: gitBin}
}

func (e *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.GitBin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", giterr.MapExec(code, redactSecrets(msg), operationContext(args))
	}
	return stdout.String(), nil
}

// operationContext summarizes an invocation as its leading subcommand
// words, which is exactly the context string the taxonomy keys on.
var safeToken = regexp.MustCompile(`^[a-z][a-z-]*$`)

func operationContext(args []string) string {
	if len(args) == 0 {
		return "git"
	}
	words := make([]string, 0, 2)
	for _, a := range args {
		if !safeToken.MatchString(a) {
			break
		}
		words = append(words, a)
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return "git"
	}
	return strings.Join(words, " ")
}

var (
	credURL   = regexp.MustCompile(`https?://[^\s@]+@`)
	credPairs = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

// redactSecrets scrubs credential-bearing substrings before the message
// ends up in an error or a log line.
func redactSecrets(s string) string {
	s = credURL.ReplaceAllString(s, "https://<redacted>@")
	s = credPairs.ReplaceAllString(s, "$1=<redacted>")
	return s
}
