//go:build !cgo

package serverdb

// The cgo driver is not compiled in without cgo.
func isCgoUniqueViolation(error) bool { return false }
