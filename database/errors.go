package database

import "github.com/pkg/errors"

var (
	// ErrDatabaseClosed is returned by every operation on a closed engine.
	ErrDatabaseClosed = errors.New("database closed")

	// ErrDatabaseNotFound is returned when a requested key is absent. Callers
	// match it with errors.Is since stores wrap it with context.
	ErrDatabaseNotFound = errors.New("key not found")
)
