// Package migrate applies the engine's SQL schema against a Postgres
// database. There is no migration library anywhere in the retrieved
// reference pack, so this follows the pack's own idiom — embed static
// assets with go:embed, walk them at startup — applied to ordered SQL
// scripts instead of the teacher's model/workflow bundles, with each
// script's application recorded so it never reapplies.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbasehq/knowledge-engine/internal/kberrors"
)

//go:embed sql/*.sql
var scripts embed.FS

// embeddingDimensionsPlaceholder is substituted with the configured
// embedding vector width in the one script that declares a `vector`
// column, since pgvector requires a fixed dimension at table-creation
// time and that width is a runtime configuration value, not a
// constant this package can hard-code.
const embeddingDimensionsPlaceholder = "{{EMBEDDING_DIMENSIONS}}"

const journalTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// script is one ordered, named SQL file.
type script struct {
	name string
	sql  string
}

func loadScripts() ([]script, error) {
	entries, err := fs.ReadDir(scripts, "sql")
	if err != nil {
		return nil, kberrors.Wrap(kberrors.StorageError, "read embedded migration scripts", err)
	}
	out := make([]script, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := scripts.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("read migration %s", e.Name()), err)
		}
		out = append(out, script{name: e.Name(), sql: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// Apply runs every embedded script not yet recorded in
// schema_migrations, in filename order, each inside its own
// transaction. embeddingDimensions is substituted into any script
// referencing embeddingDimensionsPlaceholder.
func Apply(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, journalTable); err != nil {
		return kberrors.Wrap(kberrors.StorageError, "ensure schema_migrations table", err)
	}

	all, err := loadScripts()
	if err != nil {
		return err
	}

	for _, s := range all {
		applied, err := isApplied(ctx, pool, s.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		body := strings.ReplaceAll(s.sql, embeddingDimensionsPlaceholder, fmt.Sprintf("%d", embeddingDimensions))

		tx, err := pool.Begin(ctx)
		if err != nil {
			return kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("begin transaction for migration %s", s.name), err)
		}
		if _, err := tx.Exec(ctx, body); err != nil {
			_ = tx.Rollback(ctx)
			return kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("apply migration %s", s.name), err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, s.name); err != nil {
			_ = tx.Rollback(ctx)
			return kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("record migration %s", s.name), err)
		}
		if err := tx.Commit(ctx); err != nil {
			return kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("commit migration %s", s.name), err)
		}
	}
	return nil
}

// Names returns the embedded migration script names in application
// order, for startup logging and tests.
func Names() ([]string, error) {
	all, err := loadScripts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.name
	}
	return names, nil
}

func isApplied(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations WHERE name = $1`, name).Scan(&count); err != nil {
		return false, kberrors.Wrap(kberrors.StorageError, fmt.Sprintf("check migration %s applied", name), err)
	}
	return count > 0, nil
}
