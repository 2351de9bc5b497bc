package preview

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a preview id is unknown or was already released.
var ErrNotFound = errors.New("preview not found")

// Preview is a transient image blob shown to the user while a selection is active.
type Preview struct {
	ID       string
	MIMEType string
	Data     []byte
}

// Store holds previews until they are released.
type Store interface {
	// Put stores data and returns the id of the new preview.
	Put(ctx context.Context, mimeType string, data []byte) (string, error)
	Get(ctx context.Context, id string) (*Preview, error)
	// Release removes the preview. Releasing an unknown id returns ErrNotFound.
	Release(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
