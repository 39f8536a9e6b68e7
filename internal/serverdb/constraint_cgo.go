//go:build cgo

package serverdb

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func isCgoUniqueViolation(err error) bool {
	var cgoErr sqlite3.Error
	if !errors.As(err, &cgoErr) {
		return false
	}
	return cgoErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		cgoErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
