package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/history"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/modifier"
	"github.com/magdb/mag/internal/schema"
	"github.com/magdb/mag/internal/store"
)

// Criteria selects the instances a field update applies to: an explicit id
// list, or a free-form query document when IDs is empty.
type Criteria struct {
	IDs   []string
	Query document.Document
}

func (c Criteria) selector() document.Document {
	if len(c.IDs) > 0 {
		return store.ByIDs(c.IDs)
	}
	return c.Query
}

// UpdateFields validates a field-modifier expression against the resource's
// model and applies it to every matching instance in one multi-document
// store update. Bare field names fold into $set; $-prefixed keys pass
// through as operators. The server stamps _meta modification fields into
// the modifier so matched instances version forward atomically.
func (e *Engine) UpdateFields(ctx context.Context, resource string, criteria Criteria, fields document.Document, actor auth.Actor, comment string) ([]document.Document, error) {
	if err := e.allowed(ctx, actor, resource, "update"); err != nil {
		return nil, err
	}
	// An empty selector would match the whole collection. Refuse it.
	if len(criteria.IDs) == 0 && len(criteria.Query) == 0 {
		return nil, schema.Invalid("field update needs an ids or criteria argument")
	}

	mod, err := foldModifier(fields)
	if err != nil {
		return nil, err
	}

	cache := make(modelCache)
	model, err := e.fetchModel(ctx, cache, resource)
	if err != nil {
		return nil, err
	}

	real, _ := modifier.ModelNames(model, mod)
	names := make(map[string]bool, len(real))
	for _, name := range real {
		names[name] = true
	}
	embedded, err := e.fetchEmbedded(ctx, cache, names)
	if err != nil {
		return nil, err
	}

	if err := modifier.Validate(model, mod, embedded, e.handleNone); err != nil {
		metrics.IncValidationFailure(resource, "modifier")
		return nil, err
	}

	coll := e.store.Collection(resource)

	// Resolve the target ids up front so the refetch after the update is
	// not at the mercy of a criteria query the update itself falsifies.
	matched, err := coll.Find(ctx, criteria.selector(), &store.FindOptions{Fields: []string{document.KeyID}})
	if err != nil {
		return nil, fmt.Errorf("resolve criteria on %s: %w", resource, err)
	}
	if len(matched) == 0 {
		return nil, &NotFoundError{Resource: resource}
	}
	ids := make([]string, len(matched))
	for i, doc := range matched {
		ids[i] = document.ID(doc)
	}

	e.stampModifier(mod, actor)

	update := make(document.Document, len(mod))
	for op, block := range mod {
		update[op] = block
	}
	if _, err := coll.Update(ctx, store.ByIDs(ids), update, true); err != nil {
		metrics.ObserveStoreOp("update", err)
		return nil, fmt.Errorf("apply modifier on %s: %w", resource, err)
	}
	metrics.ObserveStoreOp("update", nil)

	updated, err := coll.Find(ctx, store.ByIDs(ids), nil)
	if err != nil {
		return nil, fmt.Errorf("refetch %s: %w", resource, err)
	}

	if err := e.history.Record(ctx, updated, history.OpUpdate, comment); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	for range updated {
		metrics.IncMutation(resource, "update")
	}
	e.logger.WithContext(ctx).Info("fields updated",
		"resource", resource, "count", len(updated), "actor", actor.ID)
	return updated, nil
}

// foldModifier normalizes a fields payload into operator form: bare keys
// become $set entries, $-prefixed keys must already carry operator blocks.
func foldModifier(fields document.Document) (modifier.Modifier, error) {
	mod := make(modifier.Modifier)
	for key, value := range fields {
		if !strings.HasPrefix(key, "$") {
			if mod["$set"] == nil {
				mod["$set"] = make(map[string]any)
			}
			mod["$set"][key] = value
			continue
		}
		block, ok := value.(map[string]any)
		if !ok {
			return nil, schema.Invalid("operator %s needs an object argument", key)
		}
		if mod[key] == nil {
			mod[key] = make(map[string]any)
		}
		for path, arg := range block {
			mod[key][path] = arg
		}
	}
	return mod, nil
}

// stampModifier adds the server-side metadata writes to a validated
// modifier: last-modified stamps through $set, version bump through $inc.
func (e *Engine) stampModifier(mod modifier.Modifier, actor auth.Actor) {
	if mod["$set"] == nil {
		mod["$set"] = make(map[string]any)
	}
	now := e.now()
	mod["$set"]["_meta._last_modified_time"] = now
	mod["$set"]["_meta._last_modified_by"] = actor.ID
	mod["$set"]["_meta._last_modified_by_display"] = actor.Display

	if mod["$inc"] == nil {
		mod["$inc"] = make(map[string]any)
	}
	mod["$inc"]["_meta._version"] = 1
}
