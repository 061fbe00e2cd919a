// Package store defines the document-store contract the engine depends on:
// an asynchronous collection per model name with find, insert, update, and
// remove. Implementations: an in-memory store used by tests and single-node
// setups, and a MongoDB-backed store.
package store

import (
	"context"
	"errors"

	"github.com/magdb/mag/internal/document"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("document not found")

// FindOptions narrows a Find call.
type FindOptions struct {
	// Fields projects the result to the named keys (plus _id) when non-empty.
	Fields []string
	// Sort lists keys to order by; a "-" prefix sorts descending.
	Sort []string
	Limit int64
	Skip  int64
}

// Collection is one named document collection.
type Collection interface {
	// Find returns every document matching the query. Queries are documents
	// themselves: scalar values match by equality, {"$in": [...]} matches
	// membership, {"$regex": "..."} matches string pattern.
	Find(ctx context.Context, query document.Document, opts *FindOptions) ([]document.Document, error)

	// FindOne returns the first match or ErrNotFound.
	FindOne(ctx context.Context, query document.Document) (document.Document, error)

	// Count returns the number of matches.
	Count(ctx context.Context, query document.Document) (int64, error)

	// Insert appends documents.
	Insert(ctx context.Context, docs ...document.Document) error

	// Update applies a modifier expression to matching documents and
	// returns how many matched. multi applies to every match instead of
	// the first.
	Update(ctx context.Context, selector document.Document, mod document.Document, multi bool) (int64, error)

	// Replace swaps the first matching document for doc.
	Replace(ctx context.Context, selector document.Document, doc document.Document) error

	// Remove deletes matching documents and returns how many went.
	Remove(ctx context.Context, selector document.Document) (int64, error)
}

// Store hands out collections by name.
type Store interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// ModelCollection is where model definitions live.
const ModelCollection = "_model"

// In matches any of the given ids.
func In(ids []string) document.Document {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return document.Document{"$in": values}
}

// ByID selects a single document by _id.
func ByID(id string) document.Document {
	return document.Document{document.KeyID: id}
}

// ByIDs selects documents whose _id is in ids.
func ByIDs(ids []string) document.Document {
	return document.Document{document.KeyID: In(ids)}
}
