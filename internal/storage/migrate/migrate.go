// Package migrate applies the schema migrations for the repository catalog
// database. The SQL files are embedded so the binary carries its own schema
// history and can bring any catalog file up to date on startup.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var catalogSchema embed.FS

func init() {
	goose.SetBaseFS(catalogSchema)
}

// Up brings the catalog schema to the latest version. It is safe to call on
// every startup; migrations that already ran are skipped.
func Up(db *sql.DB) error {
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("select sqlite dialect: %w", err)
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}
	return nil
}
