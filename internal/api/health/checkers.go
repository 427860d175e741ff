package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return errors.New("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Versioner reports the applied schema version.
type Versioner interface {
	SchemaVersion(ctx context.Context) (int, error)
}

// SchemaChecker fails until the database has been migrated to want.
type SchemaChecker struct {
	db   Versioner
	want int
}

// NewSchemaChecker creates a schema checker expecting version want.
func NewSchemaChecker(db Versioner, want int) *SchemaChecker {
	return &SchemaChecker{db: db, want: want}
}

func (c *SchemaChecker) Name() string {
	return "schema"
}

// Check compares the applied schema version with the expected one.
func (c *SchemaChecker) Check(ctx context.Context) error {
	got, err := c.db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if got < c.want {
		return fmt.Errorf("schema version %d, want %d", got, c.want)
	}
	return nil
}
