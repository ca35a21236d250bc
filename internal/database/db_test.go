package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "nested", name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}

func TestNew_CreatesDirectoryAndDefaultsProfile(t *testing.T) {
	db := setupTestDB(t, "portfolio")

	assert.True(t, filepath.IsAbs(db.Path()))
	assert.Equal(t, "portfolio", db.Name())
	assert.Equal(t, ProfileStandard, db.profile)
	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		profile  DatabaseProfile
		contains string
	}{
		{ProfileStandard, "synchronous(NORMAL)"},
		{ProfileCache, "synchronous(OFF)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			connStr := buildConnectionString("/tmp/x.db", tt.profile)
			assert.Contains(t, connStr, "/tmp/x.db?_pragma=journal_mode(WAL)")
			assert.Contains(t, connStr, tt.contains)
			assert.Contains(t, connStr, "foreign_keys(1)")
		})
	}
}

func TestMigrate_PortfolioSchema(t *testing.T) {
	db := setupTestDB(t, "portfolio")

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "migrating twice is a no-op")

	for _, table := range []string{"instruments", "etf_holdings", "etf_positions", "transactions", "daily_prices"} {
		assert.Equal(t, 0, countRows(t, db, table), table)
	}

	_, err := db.Conn().Exec(`INSERT INTO instruments (symbol, name, provider_name) VALUES ('VWCE', 'Vanguard', 'LIGHTYEAR')`)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO transactions (instrument_id, platform, transaction_type, quantity, price, transaction_date)
		VALUES (1, 'IBKR', 'HOLD', '1', '1', '2024-01-01')`)
	assert.Error(t, err, "transaction type is constrained to BUY and SELL")
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := setupTestDB(t, "scratch")
	require.NoError(t, db.Migrate())

	var tables int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&tables))
	assert.Equal(t, 0, tables)
}

func TestWithTransaction(t *testing.T) {
	db := setupTestDB(t, "scratch")
	_, err := db.Conn().Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test_table (value) VALUES (?)", "x")
		return err
	}

	t.Run("commits on success", func(t *testing.T) {
		require.NoError(t, WithTransaction(db.Conn(), insert))
		assert.Equal(t, 1, countRows(t, db, "test_table"))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		testErr := errors.New("test error")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if err := insert(tx); err != nil {
				return err
			}
			return testErr
		})
		assert.ErrorIs(t, err, testErr)
		assert.Equal(t, 1, countRows(t, db, "test_table"))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_ = insert(tx)
			panic("boom")
		})
		assert.ErrorContains(t, err, "panic in transaction: boom")
		assert.Equal(t, 1, countRows(t, db, "test_table"))
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, insert))
	})
}

func TestHealthCheckAndStats(t *testing.T) {
	db := setupTestDB(t, "portfolio")
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, stats.PageSize)
	assert.Positive(t, stats.PageCount)
}
