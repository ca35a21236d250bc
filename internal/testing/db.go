// Package testing provides test databases and in-memory collaborators.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/aristath/lookthrough/internal/database"
)

// NewTestDB creates a temp-file SQLite database with the named schema applied.
// Returns the database and a cleanup function; unknown names get an empty database.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temp files keep every test isolated
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileCache,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, path := range []string{tmpPath, tmpPath + "-wal", tmpPath + "-shm"} {
			_ = os.Remove(path)
		}
	}
}

// Statement is one parameterised SQL statement
type Statement struct {
	Query string
	Args  []interface{}
}

// Stmt builds a Statement
func Stmt(query string, args ...interface{}) Statement {
	return Statement{Query: query, Args: args}
}

// MustExec runs the statements in a single transaction and fails the test on error
func MustExec(t *testing.T, db *sql.DB, statements ...Statement) {
	t.Helper()

	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		for _, s := range statements {
			if _, err := tx.Exec(s.Query, s.Args...); err != nil {
				return fmt.Errorf("%s: %w", s.Query, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
}
