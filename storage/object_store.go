package storage

import (
	"context"
	"io"
)

// StoredObject describes an object after a successful Put.
type StoredObject struct {
	Key      string
	Location string // public URL, empty when the bucket has none
	ETag     string
}

// ObjectStore is the bucket the results archive writes snapshots into.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
