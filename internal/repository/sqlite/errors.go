package sqlite

import (
	"errors"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsUniqueConstraintError reports whether err is a SQLite primary key or
// unique constraint violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	// Drivers that do not expose extended result codes still carry the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
