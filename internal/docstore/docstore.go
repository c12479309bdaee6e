// Package docstore provides the document persistence abstraction used by the
// benchbook stores: one JSON document per record, grouped by kind, rewritten
// wholesale on every mutation. The canonical driver is a plain directory
// tree; memory, sqlite, and postgres drivers share the same semantics.
package docstore

import (
	"errors"

	"benchbook/pkg/domain"
)

// ErrNotExists is returned when a requested document is absent.
var ErrNotExists = errors.New("document does not exist")

// ErrExists is returned by WriteNew when the document is already present.
var ErrExists = errors.New("document already exists")

// Driver identifies a concrete document store implementation.
type Driver string

const (
	DriverDir      Driver = "dir"      // one JSON file per document (canonical layout)
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Store reads and writes whole JSON documents keyed by kind and identifier.
// Write replaces the stored payload wholesale; WriteNew fails when the
// identifier is taken, which is how append-only version chains and unique
// sample ids are enforced at the storage boundary.
type Store interface {
	Driver() Driver

	// Read unmarshals the document into v. Returns ErrNotExists when absent.
	Read(kind domain.Kind, id string, v any) error
	// Write marshals v and replaces the stored document.
	Write(kind domain.Kind, id string, v any) error
	// WriteNew marshals v and stores it, failing with ErrExists when the
	// identifier is already present.
	WriteNew(kind domain.Kind, id string, v any) error
	// Exists reports whether a document is stored under the identifier.
	Exists(kind domain.Kind, id string) (bool, error)
	// List returns all stored identifiers of the kind in lexical order.
	List(kind domain.Kind) ([]string, error)
	// Delete removes a document; removing an absent document is not an error.
	Delete(kind domain.Kind, id string) error
}
