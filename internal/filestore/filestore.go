// Package filestore persists binary attachments uploaded alongside
// documents. Keys are derived from the owning document so attachment
// cleanup on delete needs no extra bookkeeping.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
)

var ErrNotFound = errors.New("attachment not found")

// Store is the attachment backend. Implementations: filesystem for
// single-node setups, S3 for production, memory for tests.
type Store interface {
	// Write stores data under key, replacing any previous content.
	Write(ctx context.Context, key string, data []byte, contentType string) error

	// Read returns the content and content type for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// AttachmentKey builds the storage key for a document's attachment field.
// The content type is kept by the store, so the key carries no extension.
func AttachmentKey(model, id, field string) string {
	return path.Join(model, id, field)
}

// DocumentPrefix is the key prefix holding every attachment of a document.
func DocumentPrefix(model, id string) string {
	return path.Join(model, id) + "/"
}

// DeleteDocument removes the attachments named by fields for one document.
// Missing attachments are skipped; the first real error is returned after
// every field has been attempted.
func DeleteDocument(ctx context.Context, store Store, model, id string, fields []string) error {
	var firstErr error
	for _, field := range fields {
		err := store.Delete(ctx, AttachmentKey(model, id, field))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete attachment %s: %w", field, err)
		}
	}
	return firstErr
}
