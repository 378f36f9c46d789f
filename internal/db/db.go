package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultDataDirectory is the default root directory for the database file.
	DefaultDataDirectory = "./data"

	// DBName is the filename for the application database.
	DBName = "slugnotes.db"

	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2
)

var (
	// DataDirectory is the actual data directory being used (can be overridden for tests).
	DataDirectory = DefaultDataDirectory
)

var (
	appDB     *sql.DB
	appDBOnce sync.Once
	appDBErr  error
)

// DB wraps the sql.DB connection for the shared application database.
type DB struct {
	db *sql.DB
}

// NewFromSQL wraps an existing sql.DB as DB. The schema must already be applied.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB}
}

// SQL returns the underlying sql.DB for direct access.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Open opens the shared application database. The connection is cached as a
// singleton and reused across calls.
func Open() (*DB, error) {
	appDBOnce.Do(func() {
		if err := os.MkdirAll(DataDirectory, 0750); err != nil {
			appDBErr = fmt.Errorf("failed to create data directory: %w", err)
			return
		}

		dbPath := filepath.Join(DataDirectory, DBName)
		dsn := appendSQLiteParams(dbPath, sqliteCommonParams())

		sqlDB, err := sql.Open(SQLiteDriverName, dsn)
		if err != nil {
			appDBErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		sqlDB.SetMaxOpenConns(MaxOpenConns)
		sqlDB.SetMaxIdleConns(MaxIdleConns)

		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			appDBErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}

		if _, err := sqlDB.Exec(Schema); err != nil {
			sqlDB.Close()
			appDBErr = fmt.Errorf("failed to initialize schema: %w", err)
			return
		}

		appDB = sqlDB
	})

	if appDBErr != nil {
		return nil, appDBErr
	}

	return NewFromSQL(appDB), nil
}

// Close closes the DB connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// CloseAll closes the shared database connection.
// This should be called during graceful shutdown.
func CloseAll() error {
	if appDB != nil {
		if err := appDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		appDB = nil
	}
	return nil
}

// ResetForTesting resets the singleton state for clean test isolation.
func ResetForTesting() {
	CloseAll()
	appDBOnce = sync.Once{}
	appDB = nil
	appDBErr = nil
}

func sqliteCommonParams() string {
	// Production-safe defaults: WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
