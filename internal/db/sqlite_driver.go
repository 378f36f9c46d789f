package db

import (
	"strings"

	// Registers the "sqlite3" driver. The driver ships SQLCipher support but
	// runs as plain SQLite when no key pragma is supplied, which is how this
	// application uses it.
	_ "github.com/mutecomm/go-sqlcipher/v4"
)

// SQLiteDriverName is the database/sql driver used for all connections.
const SQLiteDriverName = "sqlite3"

// IsUniqueConstraintError reports whether err is a SQLite unique constraint
// violation on the given column (table.column form, e.g. "notes.slug").
func IsUniqueConstraintError(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, column)
}
