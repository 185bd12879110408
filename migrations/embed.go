// Package migrations embeds the PostgreSQL schema and applies it in order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

// Files embeds the ordered schema migrations.
//
//go:embed *.sql
var Files embed.FS

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Names returns the migration file names in apply order.
func Names() ([]string, error) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every embedded migration. Statements are idempotent, so
// re-running against an existing schema is a no-op.
func Apply(ctx context.Context, db Execer) ([]string, error) {
	names, err := Names()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		body, err := Files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return names, nil
}
