// Package storage defines where registry snapshots are kept.
//
// Backends register themselves from an init function in their own package
// and are selected by name through New:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg config.BackupConfig) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package blank-imports every backend it wants available.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the named object does not exist
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Put when the name is already taken
	ErrExists = errors.New("object already exists")
)

// Storage is a flat namespace of immutable objects
type Storage interface {
	// Put stores data under name. Existing objects are never overwritten.
	Put(ctx context.Context, name string, data []byte) (*Object, error)

	// Get returns the full contents of the named object
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns every stored object in no particular order
	List(ctx context.Context) ([]Object, error)

	// Delete removes the named object; deleting a missing object is not an error
	Delete(ctx context.Context, name string) error
}

// Object describes one stored object
type Object struct {
	Name string

	// Size is the object size in bytes
	Size int64

	// Checksum is the hex SHA256 of the contents
	Checksum string

	LastModified time.Time
}
