// Package docstore defines the versioned document store that every
// collection in the system is persisted through.
//
// A document is an opaque byte payload addressed by (collection, key) and
// tagged with a version. A write either names the version it read, in which
// case it only succeeds if nobody wrote in between, or names NoVersion and
// replaces whatever is stored. The conditional write is the only concurrency
// control primitive in the process; callers build optimistic retry loops on
// top of it (see package occ).
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned by Put when the stored version differs from
// the expected one. It is transient: the caller should re-read and retry.
var ErrVersionConflict = errors.New("docstore: version conflict")

// Version identifies the exact content a document had when it was read.
type Version string

// NoVersion is the tag of a document that does not exist yet. Passing it to
// Put makes the write unconditional; SaveIfUnchanged turns it into Create.
const NoVersion Version = ""

// Document is the raw stored payload plus its version tag.
type Document struct {
	Data      []byte
	Version   Version
	UpdatedAt time.Time
}

// Exists reports whether the document was found in the backend.
func (d Document) Exists() bool {
	return d.Version != NoVersion
}

// Store is the port implemented by the memory, SQLite and Redis backends.
type Store interface {
	// Get returns the current document. A missing document is not an error:
	// it comes back with nil Data and NoVersion.
	Get(ctx context.Context, collection, key string) (Document, error)

	// Put replaces the document and returns its new version. When expected
	// is not NoVersion and does not match the stored version (including the
	// document not existing at all), Put returns ErrVersionConflict and
	// leaves the stored document untouched.
	Put(ctx context.Context, collection, key string, data []byte, expected Version) (Version, error)

	// Create writes the document only if it does not exist yet, otherwise
	// it returns ErrVersionConflict.
	Create(ctx context.Context, collection, key string, data []byte) (Version, error)
}

// NewVersion issues a fresh, never reused version tag.
func NewVersion() Version {
	return Version(uuid.NewString())
}
