package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"github.com/quantive/binance-mcp/pkg/schema"
)

//go:embed migrations/001_initial_schema.sql
var initialSchema string

// orderedMigrations lists schema migrations in apply order. Each one runs in
// its own transaction and is recorded in schema_version, so reopening an
// existing database only applies what it has not seen yet.
var orderedMigrations = []struct {
	version int
	name    string
	script  string
}{
	{1, "initial_schema", initialSchema},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return schema.NewError(schema.ErrCodeAudit, "create schema_version table").WithCause(err)
	}

	// Append's write-intent rows use version -1; only real migrations count.
	var applied int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version WHERE version > 0`,
	).Scan(&applied); err != nil {
		return schema.NewError(schema.ErrCodeAudit, "read schema version").WithCause(err)
	}

	for _, m := range orderedMigrations {
		if m.version <= applied {
			continue
		}
		if err := applyMigration(ctx, db, m.version, m.name, m.script); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, name, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeAudit, "begin migration %s", name).WithCause(err)
	}
	defer tx.Rollback()

	for _, stmt := range sqlStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return schema.NewErrorf(schema.ErrCodeAudit, "apply migration %s", name).WithCause(err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name) VALUES (?, ?)`, version, name); err != nil {
		return schema.NewErrorf(schema.ErrCodeAudit, "record migration %s", name).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeAudit, "commit migration %s", name).WithCause(err)
	}
	return nil
}

// sqlStatements strips comment lines from a migration script and splits the
// rest into executable statements.
func sqlStatements(script string) []string {
	var clean strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean.WriteString(line)
		clean.WriteByte('\n')
	}

	var stmts []string
	for _, part := range strings.Split(clean.String(), ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
