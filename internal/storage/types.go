package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrNotFound reports a collection that has never been saved. Callers
	// normally treat it as "use the default" rather than a failure.
	ErrNotFound = errors.New("collection not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON file backend
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence collaborator behind the catalog.
//
// LoadCollection decodes the named collection into out; a collection that was
// never saved returns ErrNotFound and leaves out untouched. SaveCollection
// must be atomic (write-temp-then-rename or equivalent) so a crash never
// leaves a half-written document behind.
type Store interface {
	LoadCollection(ctx context.Context, name string, out any) error
	SaveCollection(ctx context.Context, name string, v any) error
	Close() error
}
