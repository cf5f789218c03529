package database

import (
	"database/sql"
	"fmt"

	"github.com/aradaody/defi-technique/internal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect SQL flavour of the warehouse connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// LikeOperator returns the case-insensitive LIKE operator of the dialect.
// SQLite LIKE already ignores ASCII case; PostgreSQL needs ILIKE.
func (d Dialect) LikeOperator() string {
	if d == DialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// DialectOf maps a configured driver name to its dialect.
func DialectOf(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case DialectSQLite, DialectPostgres:
		return Dialect(driver), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewDB opens the warehouse connection and checks it with a ping.
func NewDB(cfg *config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectOf(cfg.Driver)
	if err != nil {
		return nil, "", err
	}

	dsn := cfg.GetDSN()
	if dialect == DialectSQLite {
		// foreign keys are off by default in SQLite
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer; the job is sequential anyway
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}

// Close closes the connection if it was opened.
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
