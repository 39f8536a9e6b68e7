package serverdb

import (
	"errors"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// violation, from either driver. Check-then-insert paths use it to map a
// lost race onto the same error the check returns.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		code := pureErr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return isCgoUniqueViolation(err)
}
