package database

type (
	KeyValueReader interface {
		// Has retrieves if a key is present in the key-value data store.
		Has(key []byte) (bool, error)

		// Get retrieves the given key if it's present in the key-value data store.
		// ErrDatabaseNotFound is returned for absent keys.
		Get(key []byte) ([]byte, error)
	}
	KeyValueWriter interface {
		// Set inserts the given value into the key-value data store.
		Set(key []byte, value []byte) error

		// Delete removes the key from the key-value data store.
		Delete(key []byte) error
	}
	Iteratee interface {
		// NewIterator creates an iterator over the keys starting with prefix,
		// in ascending key order. Keys are returned without any namespace.
		NewIterator(prefix []byte) Iterator
	}
	TreeDB interface {
		KeyValueReader
		KeyValueWriter
		Iteratee
		// NewBatch creates a write-only database that buffers changes to its host db
		// until a final write is called.
		NewBatch() Batcher
		Close() error
	}

	Batcher interface {
		KeyValueWriter

		// Write flushes any accumulated data to disk.
		Write() error

		// Reset resets the batch for reuse.
		Reset()

		// ValueSize retrieves the amount of data queued up for writing.
		ValueSize() int
	}

	// Iterator walks a snapshot of key/value pairs. It is not safe for
	// concurrent use and must be released after use.
	Iterator interface {
		// Next moves the iterator to the next pair and reports whether one exists.
		Next() bool

		// Error returns any accumulated error.
		Error() error

		// Key returns the key of the current pair. The caller may retain it.
		Key() []byte

		// Value returns the value of the current pair. The caller may retain it.
		Value() []byte

		// Release releases associated resources.
		Release()
	}
)
