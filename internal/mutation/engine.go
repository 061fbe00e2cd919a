// Package mutation orchestrates validated, versioned document mutations:
// create, full update, field update, and delete, each running the same
// fixed sequence of permission check, model resolution, validation,
// metadata stamping, persistence, and history recording.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/filestore"
	"github.com/magdb/mag/internal/history"
	"github.com/magdb/mag/internal/logging"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/schema"
	"github.com/magdb/mag/internal/store"
)

// Engine runs mutations against a document store, recording one version
// per committed change and stamping actor metadata onto every instance.
type Engine struct {
	store      store.Store
	history    *history.Recorder
	files      filestore.Store
	authz      auth.Authorizer
	logger     *logging.Logger
	handleNone bool

	// now is replaceable in tests.
	now func() time.Time
}

// Options configures an Engine.
type Options struct {
	Files      filestore.Store
	Authorizer auth.Authorizer
	Logger     *logging.Logger
	HandleNone bool
}

// NewEngine builds an Engine on top of a document store.
func NewEngine(s store.Store, opts Options) *Engine {
	if opts.Authorizer == nil {
		opts.Authorizer = auth.PermitAll{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New()
	}
	if opts.Files == nil {
		opts.Files = filestore.NewMemoryStore()
	}
	return &Engine{
		store:      s,
		history:    history.NewRecorder(s),
		files:      opts.Files,
		authz:      opts.Authorizer,
		logger:     opts.Logger,
		handleNone: opts.HandleNone,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// modelCache holds the models fetched during one orchestration pass. It is
// never shared across requests.
type modelCache map[string]*schema.Model

// fetchModel loads one model definition, consulting the per-call cache.
func (e *Engine) fetchModel(ctx context.Context, cache modelCache, name string) (*schema.Model, error) {
	if model, ok := cache[name]; ok {
		return model, nil
	}
	doc, err := e.store.Collection(store.ModelCollection).FindOne(ctx, store.ByID(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, &UnknownModelError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch model %s: %w", name, err)
	}
	model, err := schema.ParseModel(doc)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", name, err)
	}
	cache[name] = model
	return model, nil
}

// fetchEmbedded loads the named embedded models into a ModelSet.
func (e *Engine) fetchEmbedded(ctx context.Context, cache modelCache, names map[string]bool) (schema.ModelSet, error) {
	embedded := make(schema.ModelSet, len(names))
	for name := range names {
		model, err := e.fetchModel(ctx, cache, name)
		if err != nil {
			return nil, err
		}
		embedded[name] = model
	}
	return embedded, nil
}

// validateInstance resolves the instance's model plus every embedded model
// it references, then runs full instance validation.
func (e *Engine) validateInstance(ctx context.Context, cache modelCache, resource string, instance document.Document) (*schema.Model, error) {
	model, err := e.fetchModel(ctx, cache, resource)
	if err != nil {
		return nil, err
	}
	embedded, err := e.fetchEmbedded(ctx, cache, document.CollectModelNames(instance))
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateInstance(model, instance, embedded, e.handleNone); err != nil {
		metrics.IncValidationFailure(resource, failureReason(err))
		return nil, err
	}
	return model, nil
}

func failureReason(err error) string {
	var orphaned *schema.OrphanedInstanceError
	var invalid *schema.InvalidFieldsError
	var missing *schema.MissingFieldsError
	switch {
	case errors.As(err, &orphaned):
		return "orphaned"
	case errors.As(err, &invalid):
		return "invalid_fields"
	case errors.As(err, &missing):
		return "missing_fields"
	default:
		return "field"
	}
}

func (e *Engine) allowed(ctx context.Context, actor auth.Actor, resource, operation string) error {
	if e.authz.Allowed(ctx, actor, resource, operation) {
		return nil
	}
	return &AuthorizationError{Actor: actor.ID, Resource: resource, Operation: operation}
}

// stamp writes a fresh _meta block onto the instance.
func (e *Engine) stamp(instance document.Document, created time.Time, version int64, actor auth.Actor) {
	now := e.now()
	if created.IsZero() {
		created = now
	}
	document.SetMeta(instance, document.Meta{
		CreatedTime:        created,
		LastModifiedTime:   now,
		LastModifiedBy:     actor.ID,
		LastModifiedByName: actor.Display,
		Version:            version,
	})
}

// popComment strips the caller-supplied versioning keys from the instance
// and returns the history comment, if any. These keys ride along in the
// payload but are never persisted.
func popComment(instance document.Document) string {
	comment, _ := instance[document.KeyVersionalComment].(string)
	delete(instance, document.KeyVersionalComment)
	delete(instance, document.KeyOperation)
	return comment
}

// Create validates and persists one new instance, assigning an id when the
// payload carries none. A payload id that already exists is a conflict.
func (e *Engine) Create(ctx context.Context, resource string, instance document.Document, actor auth.Actor) (document.Document, error) {
	created, err := e.CreateBatch(ctx, resource, []document.Document{instance}, actor)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateBatch validates and persists a batch of new instances. Validation
// runs for the whole batch before anything is written; a failure anywhere
// rejects the batch with no side effects.
func (e *Engine) CreateBatch(ctx context.Context, resource string, instances []document.Document, actor auth.Actor) ([]document.Document, error) {
	if err := e.allowed(ctx, actor, resource, "create"); err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, schema.Invalid("no instances given")
	}

	cache := make(modelCache)
	coll := e.store.Collection(resource)

	prepared := make([]document.Document, 0, len(instances))
	var attachments []attachment
	var comment string
	for _, raw := range instances {
		instance := document.Clone(raw)
		if c := popComment(instance); c != "" {
			comment = c
		}
		if name := document.ModelName(instance); name != "" && name != resource {
			return nil, &MismatchError{Key: "model", Got: name, Want: resource}
		}
		instance[document.KeyModel] = resource

		if id := document.ID(instance); id == "" {
			instance[document.KeyID] = uuid.NewString()
		} else {
			if _, err := coll.FindOne(ctx, store.ByID(id)); err == nil {
				return nil, &ConflictError{Resource: resource, ID: id}
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("check existing %s/%s: %w", resource, id, err)
			}
		}

		model, err := e.fetchModel(ctx, cache, resource)
		if err != nil {
			return nil, err
		}
		pending, err := extractAttachments(model, instance, resource)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, pending...)

		if _, err := e.validateInstance(ctx, cache, resource, instance); err != nil {
			return nil, err
		}
		e.stamp(instance, time.Time{}, 1, actor)
		prepared = append(prepared, instance)
	}

	if err := coll.Insert(ctx, prepared...); err != nil {
		metrics.ObserveStoreOp("insert", err)
		return nil, fmt.Errorf("persist %s: %w", resource, err)
	}
	metrics.ObserveStoreOp("insert", nil)

	e.writeAttachments(ctx, attachments)

	if err := e.history.Record(ctx, prepared, history.OpCreate, comment); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	for range prepared {
		metrics.IncMutation(resource, "create")
	}
	e.logger.WithContext(ctx).Info("instances created",
		"resource", resource, "count", len(prepared), "actor", actor.ID)
	return prepared, nil
}

// Update replaces the addressed instance with a validated new revision.
// A payload identical to the stored instance (ignoring _meta) is a no-op:
// the stored instance is returned untouched, no version is recorded.
func (e *Engine) Update(ctx context.Context, resource, id string, instance document.Document, actor auth.Actor) (document.Document, error) {
	if err := e.allowed(ctx, actor, resource, "update"); err != nil {
		return nil, err
	}

	coll := e.store.Collection(resource)
	old, err := coll.FindOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: resource, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", resource, id, err)
	}

	next := document.Clone(instance)
	comment := popComment(next)
	if payloadID := document.ID(next); payloadID != "" && payloadID != id {
		return nil, &MismatchError{Key: "id", Got: payloadID, Want: id}
	}
	if name := document.ModelName(next); name != "" && name != resource {
		return nil, &MismatchError{Key: "model", Got: name, Want: resource}
	}
	next[document.KeyID] = id
	next[document.KeyModel] = resource

	cache := make(modelCache)
	model, err := e.fetchModel(ctx, cache, resource)
	if err != nil {
		return nil, err
	}
	attachments, err := extractAttachments(model, next, resource)
	if err != nil {
		return nil, err
	}

	if document.Equal(old, next, document.KeyMeta) {
		metrics.IncNoopUpdate(resource)
		e.logger.WithContext(ctx).Info("update is a no-op",
			"resource", resource, "id", id)
		return old, nil
	}

	if _, err := e.validateInstance(ctx, cache, resource, next); err != nil {
		return nil, err
	}

	oldMeta, _ := document.MetaOf(old)
	e.stamp(next, oldMeta.CreatedTime, oldMeta.Version+1, actor)

	if err := coll.Replace(ctx, store.ByID(id), next); err != nil {
		metrics.ObserveStoreOp("replace", err)
		return nil, fmt.Errorf("persist %s/%s: %w", resource, id, err)
	}
	metrics.ObserveStoreOp("replace", nil)

	e.writeAttachments(ctx, attachments)

	if err := e.history.RecordOne(ctx, next, history.OpUpdate, comment); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	metrics.IncMutation(resource, "update")
	return next, nil
}

// UpdateBatch runs full-update semantics over an explicit instance list.
// Every instance must carry an _id and every id must exist before any
// write happens; past that point instances are processed sequentially and
// a failure does not roll back earlier completed updates. The comment is
// the default history comment for instances that carry none of their own.
func (e *Engine) UpdateBatch(ctx context.Context, resource string, instances []document.Document, actor auth.Actor, comment string) ([]document.Document, error) {
	if err := e.allowed(ctx, actor, resource, "update"); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		id := document.ID(instance)
		if id == "" {
			return nil, schema.Invalid("batch update requires _id on every instance")
		}
		ids = append(ids, id)
	}

	count, err := e.store.Collection(resource).Count(ctx, store.ByIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", resource, err)
	}
	if count != int64(len(ids)) {
		return nil, &NotFoundError{Resource: resource}
	}

	updated := make([]document.Document, 0, len(instances))
	for i, instance := range instances {
		if comment != "" {
			if _, ok := instance[document.KeyVersionalComment]; !ok {
				instance = document.Clone(instance)
				instance[document.KeyVersionalComment] = comment
			}
		}
		next, err := e.Update(ctx, resource, ids[i], instance, actor)
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", resource, ids[i], err)
		}
		updated = append(updated, next)
	}
	return updated, nil
}

// Get fetches one instance.
func (e *Engine) Get(ctx context.Context, resource, id string) (document.Document, error) {
	doc, err := e.store.Collection(resource).FindOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: resource, ID: id}
	}
	return doc, err
}

// List fetches instances matching query.
func (e *Engine) List(ctx context.Context, resource string, query document.Document, opts *store.FindOptions) ([]document.Document, error) {
	return e.store.Collection(resource).Find(ctx, query, opts)
}

// CountInstances counts instances matching query.
func (e *Engine) CountInstances(ctx context.Context, resource string, query document.Document) (int64, error) {
	return e.store.Collection(resource).Count(ctx, query)
}
