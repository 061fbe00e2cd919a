package schema

import (
	"fmt"

	"github.com/magdb/mag/internal/document"
)

// Model reserved keys, excluded from the field map when a model document is
// parsed.
const (
	keyModelDescription = "modeldescription"
	keyFileFields       = "_file_fields"
)

// Field describes one declared model field.
type Field struct {
	Type FieldType

	// Required defaults to true. Only a descriptor that explicitly sets
	// required to false may be absent from an instance or targeted by $unset.
	Required bool

	// HasRequired records whether the descriptor carried a required key at
	// all; $unset needs the explicit false, not just the effective value.
	HasRequired bool

	// Resource optionally restricts an embedded field to a model name, and
	// doubles as the alias used when resolving dotted modifier paths.
	Resource string
}

// Model is a named schema definition: a field map plus the file-bearing
// field labels declared on it.
type Model struct {
	Name       string
	Fields     map[string]Field
	FileFields []string
}

// FieldNames returns the set of declared field names.
func (m *Model) FieldNames() map[string]bool {
	names := make(map[string]bool, len(m.Fields))
	for name := range m.Fields {
		names[name] = true
	}
	return names
}

// ParseModel converts a model document (as stored in the _model collection)
// into a Model. Keys reserved on models are skipped; every remaining key
// must be a descriptor map carrying a valid "field" type tag.
func ParseModel(doc document.Document) (*Model, error) {
	model := &Model{
		Name:   document.ID(doc),
		Fields: make(map[string]Field),
	}
	for key, raw := range doc {
		switch key {
		case document.KeyID, document.KeyModel, document.KeyPermissions,
			document.KeyView, document.KeyMeta, keyModelDescription:
			continue
		case keyFileFields:
			model.FileFields = parseFileFields(raw)
			continue
		}

		descriptor, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("model %q: field %q: descriptor is %T, want map", model.Name, key, raw)
		}
		field, err := parseField(descriptor)
		if err != nil {
			return nil, fmt.Errorf("model %q: field %q: %w", model.Name, key, err)
		}
		model.Fields[key] = field
	}
	return model, nil
}

func parseField(descriptor map[string]any) (Field, error) {
	rawType, ok := descriptor["field"].(string)
	if !ok {
		return Field{}, fmt.Errorf("descriptor has no field type")
	}
	fieldType := FieldType(rawType)
	if !fieldType.IsValid() {
		return Field{}, fmt.Errorf("%w: %s", ErrUnknownFieldType, rawType)
	}

	field := Field{Type: fieldType, Required: true}
	if raw, ok := descriptor["required"]; ok {
		field.HasRequired = true
		if b, ok := raw.(bool); ok {
			field.Required = b
		}
	}
	if resource, ok := descriptor["resource"].(string); ok {
		field.Resource = resource
	}
	if models, ok := descriptor["valid_models"].(string); ok && field.Resource == "" {
		field.Resource = models
	}
	return field, nil
}

func parseFileFields(raw any) []string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	list, ok := m["fields"].([]any)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			fields = append(fields, s)
		}
	}
	return fields
}

// ModelSet is a lookup of parsed models keyed by name, used while validating
// embedded instances and dotted modifier paths. It is per-call state, not a
// cross-request cache.
type ModelSet map[string]*Model

// ParseModelSet parses a list of model documents into a ModelSet.
func ParseModelSet(docs []document.Document) (ModelSet, error) {
	set := make(ModelSet, len(docs))
	for _, doc := range docs {
		model, err := ParseModel(doc)
		if err != nil {
			return nil, err
		}
		set[model.Name] = model
	}
	return set, nil
}
