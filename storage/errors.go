package storage

import (
	"github.com/pkg/errors"
)

var (
	ErrNilDatabase = errors.New("database is nil")

	ErrNilRepository = errors.New("repository is nil")

	ErrInvalidKeyLength = errors.New("key must be 32 bytes")

	ErrNodeNotFound = errors.New("node not found")

	ErrRootNotFound = errors.New("root not found")

	ErrEmptyRoot = errors.New("the empty tree has no root")

	// ErrUnsupportedOperation is returned by operations the root index
	// structure cannot express, such as removing a version.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	ErrRefCountUnderflow = errors.New("reference count would drop below zero")

	ErrMalformedEntry = errors.New("malformed index entry")

	ErrBatchReleased = errors.New("batch context already released")

	ErrInvalidRetention = errors.New("retained root count must not be negative")
)
