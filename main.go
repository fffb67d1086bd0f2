package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gitsync/internal/config"
	"gitsync/internal/logging"
	"gitsync/internal/storage"
	"gitsync/internal/storage/migrate"
	"gitsync/internal/storage/sqlite"
)

const usage = `usage: gitsync <command> [flags] [args]

commands:
  open <path>                     open a repository and print its state
  init [-bare] <path>             create a repository
  clone <url> <path>              clone a repository
  commit -m <msg> [-amend] [path] commit the staged changes
  log [-limit N] [-skip N] [path] print commit history, newest first
  show <hash> [path]              print one commit
  stats <hash> [path]             print diff stats for one commit
  reset [-mode M] <target> [path] reset to a revision (soft|mixed|hard)
  worktree <add|remove|list|prune> manage linked working trees
  repos                           list remembered repositories
  watch [path...]                 print debounced change notifications
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	dataDir, err := storage.DataDir()
	if err != nil {
		log.Fatalf("data dir: %v", err)
	}
	cfg, err := config.Load(filepath.Join(dataDir, "config.yaml"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	db, err := sqlite.Open(filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := migrate.Up(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	app := NewApp(cfg, logger, db)
	defer app.Close()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var cmdErr error
	switch cmd {
	case "open":
		cmdErr = app.cmdOpen(ctx, args)
	case "init":
		cmdErr = app.cmdInit(ctx, args)
	case "clone":
		cmdErr = app.cmdClone(ctx, args)
	case "commit":
		cmdErr = app.cmdCommit(ctx, args)
	case "log":
		cmdErr = app.cmdLog(ctx, args)
	case "show":
		cmdErr = app.cmdShow(ctx, args)
	case "stats":
		cmdErr = app.cmdStats(ctx, args)
	case "reset":
		cmdErr = app.cmdReset(ctx, args)
	case "worktree":
		cmdErr = app.cmdWorktree(ctx, args)
	case "repos":
		cmdErr = app.cmdRepos(ctx, args)
	case "watch":
		cmdErr = app.cmdWatch(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "gitsync %s: %v\n", cmd, cmdErr)
		os.Exit(1)
	}
}
