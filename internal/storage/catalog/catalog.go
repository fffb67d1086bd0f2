// Package catalog persists the set of repositories the tool has seen, so
// consumers can list and reopen them without rediscovering paths.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a lookup for an unknown repository path.
var ErrNotFound = errors.New("repository not in catalog")

// Catalog is the SQL-backed repository store.
type Catalog struct {
	db *sql.DB
}

// New wraps an already-migrated database.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Repository is one remembered repository.
type Repository struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	DisplayName   string    `json:"displayName,omitempty"`
	CurrentBranch string    `json:"currentBranch,omitempty"`
	LastOpenedAt  time.Time `json:"lastOpenedAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UpsertParams carries the fields recorded on open/init/clone.
type UpsertParams struct {
	Path          string
	DisplayName   string
	CurrentBranch string
	LastOpened    *time.Time
}

// Upsert inserts or refreshes the row for params.Path and returns it.
func (c *Catalog) Upsert(ctx context.Context, params UpsertParams) (Repository, error) {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO repositories (path, display_name, current_branch, last_opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			display_name = excluded.display_name,
			current_branch = excluded.current_branch,
			last_opened_at = COALESCE(excluded.last_opened_at, repositories.last_opened_at),
			updated_at = CURRENT_TIMESTAMP
	`, params.Path, nullIfEmpty(params.DisplayName), nullIfEmpty(params.CurrentBranch), params.LastOpened)
	if err != nil {
		return Repository{}, fmt.Errorf("upsert repository: %w", err)
	}
	return c.GetByPath(ctx, params.Path)
}

// GetByPath returns the row for path or ErrNotFound.
func (c *Catalog) GetByPath(ctx context.Context, path string) (Repository, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, current_branch, last_opened_at, created_at, updated_at
		FROM repositories
		WHERE path = ?
	`, path)
	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("get repository: %w", err)
	}
	return repo, nil
}

// List returns all remembered repositories, most recently opened first.
func (c *Catalog) List(ctx context.Context) ([]Repository, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, path, display_name, current_branch, last_opened_at, created_at, updated_at
		FROM repositories
		ORDER BY COALESCE(last_opened_at, updated_at) DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return repos, nil
}

// Touch bumps last_opened_at for path. Unknown paths are a no-op.
func (c *Catalog) Touch(ctx context.Context, path string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE repositories
		SET last_opened_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path = ?
	`, at, path)
	if err != nil {
		return fmt.Errorf("touch repository: %w", err)
	}
	return nil
}

// Delete forgets the repository at path.
func (c *Catalog) Delete(ctx context.Context, path string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM repositories WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (Repository, error) {
	var (
		repo    Repository
		display sql.NullString
		branch  sql.NullString
		last    sql.NullTime
	)
	if err := row.Scan(&repo.ID, &repo.Path, &display, &branch, &last, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
		return Repository{}, err
	}
	if display.Valid {
		repo.DisplayName = display.String
	}
	if branch.Valid {
		repo.CurrentBranch = branch.String
	}
	if last.Valid {
		repo.LastOpenedAt = last.Time
	}
	return repo, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
