// Package history records every accepted mutation as an immutable version in
// the _history collection.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/store"
)

// Collection is the store collection that holds version records.
const Collection = "_history"

// Operation tags a version record with the mutation that produced it.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// NewVersion builds one version record for an instance. The document field
// is the full snapshot at the time of the operation, _meta included. When no
// comment is given the default is "Instance <operation>d".
func NewVersion(instance document.Document, op Operation, comment string) document.Document {
	if comment == "" {
		comment = fmt.Sprintf("Instance %sd", op)
	}
	return document.Document{
		"_id":            uuid.NewString(),
		"document_id":    instance[document.KeyID],
		"document_model": instance[document.KeyModel],
		"document":       instance,
		"comment":        comment,
		"operation":      string(op),
	}
}

// NewVersions builds one version record per instance.
func NewVersions(instances []document.Document, op Operation, comment string) []document.Document {
	versions := make([]document.Document, len(instances))
	for i, instance := range instances {
		versions[i] = NewVersion(instance, op, comment)
	}
	return versions
}

// Recorder appends version records. Append-only: recording the same mutation
// twice produces two entries, so callers record exactly once per accepted
// mutation.
type Recorder struct {
	store store.Store
}

// NewRecorder builds a Recorder over the given store.
func NewRecorder(s store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record appends one version record per instance.
func (r *Recorder) Record(ctx context.Context, instances []document.Document, op Operation, comment string) error {
	if len(instances) == 0 {
		return nil
	}
	versions := NewVersions(instances, op, comment)
	if err := r.store.Collection(Collection).Insert(ctx, versions...); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	metrics.HistoryAppends.WithLabelValues(string(op)).Add(float64(len(versions)))
	return nil
}

// RecordOne appends a single version record.
func (r *Recorder) RecordOne(ctx context.Context, instance document.Document, op Operation, comment string) error {
	return r.Record(ctx, []document.Document{instance}, op, comment)
}
