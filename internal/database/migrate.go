package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL script of the dialect.
func Schema(dialect Dialect) (string, error) {
	var name string
	switch dialect {
	case DialectSQLite:
		name = "schema/sqlite.sql"
	case DialectPostgres:
		name = "schema/postgres.sql"
	default:
		return "", fmt.Errorf("no schema for dialect %q", dialect)
	}
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Statements splits a script on ";" and drops blank and comment-only chunks.
func Statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if isBlankOrComment(stmt) {
			continue
		}
		out = append(out, strings.TrimSpace(stmt))
	}
	return out
}

// Migrate applies the embedded schema. Every statement is idempotent (IF NOT EXISTS),
// so running it against an existing warehouse is a no-op.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) (int, error) {
	script, err := Schema(dialect)
	if err != nil {
		return 0, err
	}

	statements := Statements(script)
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("failed to execute statement %d: %w", i+1, err)
		}
	}
	return len(statements), nil
}

func isBlankOrComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
