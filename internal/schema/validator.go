package schema

import (
	"fmt"

	"github.com/magdb/mag/internal/document"
)

// Validator validates instances against one model, resolving embedded
// instances through a supplied model lookup.
type Validator struct {
	model      *Model
	embedded   ModelSet
	handleNone bool
}

// NewValidator builds a validator. embedded may be nil when the model has no
// embedded fields. When handleNone is set, a null value passes every field
// validator; this is a per-call override for data imported from null-bearing
// sources, not a per-field option.
func NewValidator(model *Model, embedded ModelSet, handleNone bool) *Validator {
	return &Validator{model: model, embedded: embedded, handleNone: handleNone}
}

// ValidateInstance checks that the instance meets the requirements of the
// model: it carries a _model tag, declares no unknown fields, is not missing
// any required field, and every present field value passes its type check.
// Embedded instances recurse against their own models.
func (v *Validator) ValidateInstance(instance document.Document) error {
	if _, ok := instance[document.KeyModel]; !ok {
		return &OrphanedInstanceError{}
	}

	instanceKeys := make(map[string]bool, len(instance))
	for key := range instance {
		if !document.IsReservedKey(key) {
			instanceKeys[key] = true
		}
	}
	modelKeys := v.model.FieldNames()

	extra := make(map[string]bool)
	for key := range instanceKeys {
		if !modelKeys[key] {
			extra[key] = true
		}
	}
	if len(extra) > 0 {
		return &InvalidFieldsError{Fields: sortedNames(extra)}
	}

	missing := make(map[string]bool)
	for key := range modelKeys {
		if instanceKeys[key] {
			continue
		}
		// Only an explicit required:false excuses absence.
		field := v.model.Fields[key]
		if !field.HasRequired || field.Required {
			missing[key] = true
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: sortedNames(missing)}
	}

	for key := range instanceKeys {
		if err := v.ValidateField(v.model.Fields[key].Type, instance[key]); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

// ValidateField checks one value against a field type, honoring the
// handle-none override and recursing for embedded types.
func (v *Validator) ValidateField(t FieldType, value any) error {
	var err error
	switch t {
	case TypeEmbedded:
		err = v.validateEmbedded(value)
	case TypeEmbeddedList:
		err = v.validateEmbeddedList(value)
	default:
		err = ValidateScalar(t, value)
	}
	if err != nil && value == nil && v.handleNone && IsInvalidInstance(err) {
		return nil
	}
	return err
}

func (v *Validator) validateEmbedded(value any) error {
	embedded, ok := value.(map[string]any)
	if !ok {
		return Invalid("not an embedded instance")
	}
	name, ok := embedded[document.KeyModel].(string)
	if !ok {
		return Invalid("missing _model key on embedded data")
	}
	model, ok := v.embedded[name]
	if !ok {
		return Invalid("missing _model key on embedded data")
	}
	inner := NewValidator(model, v.embedded, v.handleNone)
	return inner.ValidateInstance(embedded)
}

func (v *Validator) validateEmbeddedList(value any) error {
	list, ok := value.([]any)
	if !ok {
		return Invalid("not an embedded list")
	}
	for _, item := range list {
		if err := v.validateEmbedded(item); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInstance is the package-level convenience wrapper: parse nothing,
// validate one instance against a model with optional embedded models.
func ValidateInstance(model *Model, instance document.Document, embedded ModelSet, handleNone bool) error {
	return NewValidator(model, embedded, handleNone).ValidateInstance(instance)
}
