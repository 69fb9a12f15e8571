package tarchan

import (
	"context"
	"time"
)

// ObjectInfo contains basic information about an object in the bucket.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore defines the capability surface this system needs from its
// storage backend. The s3 package provides the production implementation.
//
// All methods accept a context for cancellation and timeout control.
type ObjectStore interface {
	// Get reads a whole object into memory. Intended for the small
	// catalog and channel config objects, never for archive bytes.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// HeadExists reports whether an object exists without fetching it.
	HeadExists(ctx context.Context, key string) (bool, error)

	// Put writes an object unconditionally, overwriting any existing
	// content. Used only for the catalog and channel config objects,
	// the protocol's mutable pointers. Archive bytes always go through
	// PutIfAbsent.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// PutIfAbsent writes an object only if the key does not already
	// exist, enforced by the storage layer's atomic conditional write.
	// Returns ErrAlreadyExists if the key is present. Two racing writers
	// resolve to exactly one winner.
	PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) error

	// List returns the objects under the given key prefix. An empty
	// prefix lists the whole bucket.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// PresignGet returns a time-limited URL granting read access to an
	// object without sharing long-lived credentials. Presigning is a
	// local signing operation; it does not contact the store.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
