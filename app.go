package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gitsync/internal/config"
	"gitsync/internal/git/gitops"
	"gitsync/internal/git/repo"
	"gitsync/internal/git/runner"
	"gitsync/internal/git/status"
	"gitsync/internal/git/worktrees"
	"gitsync/internal/logging"
	"gitsync/internal/storage/catalog"
	"gitsync/internal/watchers"
)

// App wires configuration, storage, and the git services behind the CLI
// commands.
type App struct {
	cfg     config.Config
	logger  logging.Logger
	db      *sql.DB
	catalog *catalog.Catalog
	center  *watchers.Center
	run     runner.Runner
}

// NewApp builds the service graph from a loaded configuration.
func NewApp(cfg config.Config, logger logging.Logger, db *sql.DB) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		catalog: catalog.New(db),
		center:  watchers.NewCenter(cfg.Debounce(), cfg.PollInterval(), logger),
		run:     runner.NewExecRunner(cfg.GitBin),
	}
}

// Close releases held resources at shutdown.
func (a *App) Close() {
	a.center.Stop()
	if a.db != nil {
		_ = a.db.Close()
	}
}

// remember records a repository in the catalog; failures only log, a broken
// catalog must not block git operations.
func (a *App) remember(ctx context.Context, h *repo.Handle) {
	branch, err := h.CurrentBranch()
	if err != nil {
		branch = ""
	}
	now := time.Now()
	_, err = a.catalog.Upsert(ctx, catalog.UpsertParams{
		Path:          h.Path(),
		DisplayName:   filepath.Base(h.Path()),
		CurrentBranch: branch,
		LastOpened:    &now,
	})
	if err != nil {
		a.logger.Warn("catalog update failed", "path", h.Path(), "error", err)
	}
}

func (a *App) cmdOpen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := resolvePathArg(fs.Arg(0))
	if err != nil {
		return err
	}

	h, err := repo.Open(path)
	if err != nil {
		return err
	}
	defer h.Close()
	a.remember(ctx, h)
	return a.printSummary(h)
}

func (a *App) cmdInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	bare := fs.Bool("bare", false, "create a bare repository")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := resolvePathArg(fs.Arg(0))
	if err != nil {
		return err
	}

	h, err := repo.Init(path, *bare)
	if err != nil {
		return err
	}
	defer h.Close()
	a.remember(ctx, h)
	fmt.Printf("initialized repository at %s\n", h.Path())
	return nil
}

func (a *App) cmdClone(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	url := fs.Arg(0)
	if url == "" {
		return errors.New("usage: gitsync clone <url> <path>")
	}
	path, err := resolvePathArg(fs.Arg(1))
	if err != nil {
		return err
	}

	a.logger.Info("cloning", "url", url, "path", path)
	h, err := repo.Clone(url, path)
	if err != nil {
		return err
	}
	defer h.Close()
	a.remember(ctx, h)
	fmt.Printf("cloned into %s\n", h.Path())
	return nil
}

func (a *App) cmdCommit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	amend := fs.Bool("amend", false, "amend the HEAD commit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*message) == "" {
		return errors.New("commit message is required (-m)")
	}
	h, err := a.openArg(fs.Arg(0))
	if err != nil {
		return err
	}
	defer h.Close()

	oid, err := gitops.Commit(h, *message, *amend)
	if err != nil {
		return err
	}
	a.remember(ctx, h)
	fmt.Println(oid)
	return nil
}

func (a *App) cmdLog(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum commits to print")
	skip := fs.Int("skip", 0, "commits to skip from HEAD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	h, err := a.openArg(fs.Arg(0))
	if err != nil {
		return err
	}
	defer h.Close()

	commits, err := gitops.Log(h, *limit, *skip)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Printf("%s  %s  %s  %s\n",
			c.ShortOID, c.When.Format("2006-01-02 15:04"), c.Author.Name, c.Summary)
	}
	return nil
}

func (a *App) cmdShow(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	hash := fs.Arg(0)
	if hash == "" {
		return errors.New("usage: gitsync show <hash> [path]")
	}
	h, err := a.openArg(fs.Arg(1))
	if err != nil {
		return err
	}
	defer h.Close()

	info, err := gitops.GetCommit(h, hash)
	if err != nil {
		return err
	}
	fmt.Printf("commit %s\n", info.OID)
	for _, p := range info.ParentOIDs {
		fmt.Printf("parent %s\n", p)
	}
	fmt.Printf("author    %s <%s> %s\n", info.Author.Name, info.Author.Email, info.Author.When.Format(time.RFC1123Z))
	fmt.Printf("committer %s <%s> %s\n\n", info.Committer.Name, info.Committer.Email, info.Committer.When.Format(time.RFC1123Z))
	fmt.Println(strings.TrimRight(info.Message, "\n"))
	return nil
}

func (a *App) cmdStats(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	hash := fs.Arg(0)
	if hash == "" {
		return errors.New("usage: gitsync stats <hash> [path]")
	}
	h, err := a.openArg(fs.Arg(1))
	if err != nil {
		return err
	}
	defer h.Close()

	stats, err := gitops.CommitStats(h, hash)
	if err != nil {
		return err
	}
	fmt.Printf("%d files changed, %d insertions(+), %d deletions(-)\n",
		stats.FilesChanged, stats.Insertions, stats.Deletions)
	return nil
}

func (a *App) cmdReset(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	mode := fs.String("mode", "mixed", "reset mode: soft, mixed, or hard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := fs.Arg(0)
	if target == "" {
		return errors.New("usage: gitsync reset [-mode soft|mixed|hard] <target> [path]")
	}
	h, err := a.openArg(fs.Arg(1))
	if err != nil {
		return err
	}
	defer h.Close()

	return gitops.Reset(h, target, gitops.ParseResetMode(*mode))
}

func (a *App) cmdWorktree(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: gitsync worktree <add|remove|list|prune> ...")
	}
	m := worktrees.NewManager(a.run)
	sub, rest := args[0], args[1:]

	switch sub {
	case "add":
		fs := flag.NewFlagSet("worktree add", flag.ExitOnError)
		branch := fs.String("b", "", "new branch name")
		base := fs.String("base", "", "base ref (defaults to HEAD)")
		force := fs.Bool("force", false, "reuse an existing directory")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		root, err := repo.Discover(mustGetwd())
		if err != nil {
			return err
		}
		return m.Add(ctx, root, fs.Arg(0), *branch, *base, *force)
	case "remove":
		fs := flag.NewFlagSet("worktree remove", flag.ExitOnError)
		force := fs.Bool("force", false, "remove even with local changes")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		root, err := repo.Discover(mustGetwd())
		if err != nil {
			return err
		}
		return m.Remove(ctx, root, fs.Arg(0), *force)
	case "prune":
		root, err := repo.Discover(mustGetwd())
		if err != nil {
			return err
		}
		return m.Prune(ctx, root)
	case "list":
		root, err := repo.Discover(mustGetwd())
		if err != nil {
			return err
		}
		list, err := m.List(ctx, root)
		if err != nil {
			return err
		}
		for _, wt := range list {
			state := wt.Branch
			switch {
			case wt.Bare:
				state = "(bare)"
			case wt.Detached:
				state = "(detached)"
			}
			if wt.Locked {
				state += " locked"
			}
			fmt.Printf("%s  %.8s  %s\n", wt.Path, wt.Head, state)
		}
		return nil
	default:
		return fmt.Errorf("unknown worktree subcommand %q", sub)
	}
}

func (a *App) cmdRepos(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("repos", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	repos, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range repos {
		opened := "never"
		if !r.LastOpenedAt.IsZero() {
			opened = r.LastOpenedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  [%s]  last opened %s\n", r.Path, r.CurrentBranch, opened)
	}
	return nil
}

// cmdWatch subscribes to one or more working trees and prints a change
// summary each time a debounced notification fires, until interrupted.
func (a *App) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{mustGetwd()}
	}

	reader := status.NewReader(a.run)
	for _, p := range paths {
		root, err := repo.Discover(p)
		if err != nil {
			return err
		}
		path := root
		id := a.center.Subscribe(path, func() {
			a.reportChange(ctx, reader, path)
		})
		defer a.center.Unsubscribe(path, id)
		fmt.Printf("watching %s\n", path)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	return nil
}

func (a *App) reportChange(ctx context.Context, reader *status.Reader, path string) {
	h, err := repo.Open(path)
	if err != nil {
		a.logger.Warn("open after change failed", "path", path, "error", err)
		return
	}
	defer h.Close()
	branch, _ := h.CurrentBranch()
	if branch == "" {
		branch = "(detached)"
	}

	changes, err := reader.Changes(ctx, path)
	if err != nil {
		a.logger.Warn("status after change failed", "path", path, "error", err)
		fmt.Printf("%s %s [%s] changed\n", time.Now().Format("15:04:05"), path, branch)
		return
	}
	fmt.Printf("%s %s [%s] %d changed files\n", time.Now().Format("15:04:05"), path, branch, len(changes))
	for _, c := range changes {
		fmt.Printf("    %-2s %s (+%d -%d)\n", c.Status, c.Path, c.Added, c.Removed)
	}
}

// printSummary renders the read-only accessors for one repository.
func (a *App) printSummary(h *repo.Handle) error {
	bare, err := h.IsBare()
	if err != nil {
		return err
	}
	empty, err := h.IsEmpty()
	if err != nil {
		return err
	}
	fmt.Printf("repository  %s\n", h.Path())
	fmt.Printf("bare        %v\n", bare)
	fmt.Printf("empty       %v\n", empty)
	if !bare {
		detached, err := h.IsHeadDetached()
		if err != nil {
			return err
		}
		branch, err := h.CurrentBranch()
		if err != nil {
			return err
		}
		if branch == "" {
			branch = "(detached)"
		}
		gitdir, err := h.Gitdir()
		if err != nil {
			return err
		}
		fmt.Printf("detached    %v\n", detached)
		fmt.Printf("branch      %s\n", branch)
		fmt.Printf("gitdir      %s\n", gitdir)
	}
	sig, err := h.DefaultSignature()
	if err != nil {
		return err
	}
	fmt.Printf("committer   %s <%s>\n", sig.Name, sig.Email)
	return nil
}

// openArg opens the repository named by arg, discovering upward from the
// working directory when arg is empty.
func (a *App) openArg(arg string) (*repo.Handle, error) {
	if strings.TrimSpace(arg) == "" {
		root, err := repo.Discover(mustGetwd())
		if err != nil {
			return nil, err
		}
		return repo.Open(root)
	}
	root, err := repo.Discover(arg)
	if err != nil {
		return nil, err
	}
	return repo.Open(root)
}

func resolvePathArg(arg string) (string, error) {
	if strings.TrimSpace(arg) == "" {
		return "", errors.New("path argument is required")
	}
	return filepath.Abs(arg)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
