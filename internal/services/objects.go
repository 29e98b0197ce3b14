package services

import (
	"context"
	"io"
)

// ObjectStore holds uploaded files and hands out durable URLs for them.
type ObjectStore interface {
	// Put stores body under path and returns the object reference.
	Put(ctx context.Context, path, contentType string, body io.Reader) (string, error)
	// URL returns a durable download URL for ref.
	URL(ctx context.Context, ref string) (string, error)
}
