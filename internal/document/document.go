// Package document provides the generic document representation shared by the
// validation and mutation layers: a JSON-like tree of maps, lists and scalars
// with a handful of reserved keys.
package document

import (
	"time"
)

// Reserved instance keys. These are stripped before field-presence checks and
// are never declared in a model.
const (
	KeyID               = "_id"
	KeyModel            = "_model"
	KeyMeta             = "_meta"
	KeyView             = "_view"
	KeyVersionalComment = "_versional_comment"
	KeyOperation        = "_operation"
	KeyPermissions      = "_permissions"
	KeyFileData         = "_file_data"
)

// reservedInstanceKeys are excluded from model-field presence checks.
var reservedInstanceKeys = map[string]bool{
	KeyID:               true,
	KeyModel:            true,
	KeyMeta:             true,
	KeyView:             true,
	KeyVersionalComment: true,
	KeyOperation:        true,
	KeyPermissions:      true,
}

// IsReservedKey reports whether key is reserved on instances.
func IsReservedKey(key string) bool {
	return reservedInstanceKeys[key]
}

// Document is a JSON-representable document: string keys mapping to scalars,
// nested maps, and lists.
type Document = map[string]any

// ID returns the document's _id as a string, or "" when absent.
func ID(doc Document) string {
	id, _ := doc[KeyID].(string)
	return id
}

// ModelName returns the document's _model tag, or "" when absent.
func ModelName(doc Document) string {
	name, _ := doc[KeyModel].(string)
	return name
}

// Clone returns a deep copy of doc. Scalars are shared; maps and lists are
// copied recursively.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Meta is the per-instance versioning block stored under _meta.
type Meta struct {
	CreatedTime        time.Time `json:"_created_time" bson:"_created_time"`
	LastModifiedTime   time.Time `json:"_last_modified_time" bson:"_last_modified_time"`
	LastModifiedBy     string    `json:"_last_modified_by" bson:"_last_modified_by"`
	LastModifiedByName string    `json:"_last_modified_by_display" bson:"_last_modified_by_display"`
	Version            int64     `json:"_version" bson:"_version"`
}

// MetaOf extracts the _meta block from doc. Instances that predate metadata
// stamping report version 1 and a zero creation time, matching how updates
// treat them.
func MetaOf(doc Document) (Meta, bool) {
	raw, ok := doc[KeyMeta]
	if !ok {
		return Meta{Version: 1, CreatedTime: time.Unix(0, 0).UTC()}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Meta{Version: 1, CreatedTime: time.Unix(0, 0).UTC()}, false
	}
	meta := Meta{Version: 1}
	if t, ok := asTime(m["_created_time"]); ok {
		meta.CreatedTime = t
	}
	if t, ok := asTime(m["_last_modified_time"]); ok {
		meta.LastModifiedTime = t
	}
	if s, ok := m["_last_modified_by"].(string); ok {
		meta.LastModifiedBy = s
	}
	if s, ok := m["_last_modified_by_display"].(string); ok {
		meta.LastModifiedByName = s
	}
	if n, ok := asInt64(m["_version"]); ok {
		meta.Version = n
	}
	return meta, true
}

// SetMeta writes the _meta block onto doc as a plain map so the document
// stays JSON-representable end to end.
func SetMeta(doc Document, meta Meta) {
	doc[KeyMeta] = map[string]any{
		"_created_time":             meta.CreatedTime,
		"_last_modified_time":       meta.LastModifiedTime,
		"_last_modified_by":         meta.LastModifiedBy,
		"_last_modified_by_display": meta.LastModifiedByName,
		"_version":                  meta.Version,
	}
}

func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case float64:
		return int64(val), true
	}
	return 0, false
}

// MapByID converts a list of documents into a map keyed by _id.
func MapByID(docs []Document) map[string]Document {
	out := make(map[string]Document, len(docs))
	for _, doc := range docs {
		out[ID(doc)] = doc
	}
	return out
}
