package mutation

import (
	"context"
	"fmt"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/history"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/store"
)

// Delete removes the addressed instances, recording one tombstone version
// per instance before anything leaves storage. Attachments declared through
// the model's file fields are cleaned up afterwards, best-effort.
func (e *Engine) Delete(ctx context.Context, resource string, ids []string, actor auth.Actor, comment string) ([]string, error) {
	if err := e.allowed(ctx, actor, resource, "delete"); err != nil {
		return nil, err
	}

	coll := e.store.Collection(resource)
	found, err := coll.Find(ctx, store.ByIDs(ids), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	if len(found) == 0 {
		if len(ids) == 1 {
			return nil, &NotFoundError{Resource: resource, ID: ids[0]}
		}
		return nil, &NotFoundError{Resource: resource}
	}

	if comment == "" {
		comment = "Instance deleted"
	}

	// History goes first so a failed removal never leaves an unrecorded
	// delete; a re-issued delete appends a second tombstone, which is the
	// accepted trade.
	if err := e.history.Record(ctx, found, history.OpDelete, comment); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}

	deleted := make([]string, len(found))
	for i, doc := range found {
		deleted[i] = document.ID(doc)
	}

	if _, err := coll.Remove(ctx, store.ByIDs(deleted)); err != nil {
		metrics.ObserveStoreOp("remove", err)
		return nil, fmt.Errorf("remove from %s: %w", resource, err)
	}
	metrics.ObserveStoreOp("remove", nil)

	cache := make(modelCache)
	if model, err := e.fetchModel(ctx, cache, resource); err == nil {
		e.deleteAttachments(ctx, model, resource, found)
	}

	for range deleted {
		metrics.IncMutation(resource, "delete")
	}
	e.logger.WithContext(ctx).Info("instances deleted",
		"resource", resource, "count", len(deleted), "actor", actor.ID)
	return deleted, nil
}
