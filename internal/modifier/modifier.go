// Package modifier validates operator-based partial-update expressions
// ($set, $inc, $push, ...) against a model, resolving dotted and positional
// field paths through embedded models.
package modifier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magdb/mag/internal/schema"
)

// Op is the closed set of supported modifier operators.
type Op string

const (
	OpSet      Op = "$set"
	OpUnset    Op = "$unset"
	OpInc      Op = "$inc"
	OpPush     Op = "$push"
	OpPushAll  Op = "$pushAll"
	OpAddToSet Op = "$addToSet"
	OpEach     Op = "$each"
	OpPop      Op = "$pop"
	OpPull     Op = "$pull"
	OpPullAll  Op = "$pullAll"
	OpRename   Op = "$rename"
	OpBit      Op = "$bit"
)

// IsValid returns true for a recognized operator.
func (o Op) IsValid() bool {
	switch o {
	case OpSet, OpUnset, OpInc, OpPush, OpPushAll, OpAddToSet, OpEach,
		OpPop, OpPull, OpPullAll, OpRename, OpBit:
		return true
	default:
		return false
	}
}

func (o Op) isArrayOp() bool {
	switch o {
	case OpPush, OpPushAll, OpAddToSet, OpEach, OpPop, OpPull, OpPullAll:
		return true
	default:
		return false
	}
}

// Modifier maps operator names to field-path/argument pairs.
type Modifier = map[string]map[string]any

// Validate checks every operator target in the modifier against the model.
// embedded supplies the models referenced by dotted paths; ModelNames says
// which those are. An unknown operator is a configuration error; everything
// else fails with a schema validation error.
func Validate(model *schema.Model, mod Modifier, embedded schema.ModelSet, handleNone bool) error {
	validator := schema.NewValidator(model, embedded, handleNone)
	for rawOp, targets := range mod {
		op := Op(rawOp)
		if !op.IsValid() {
			return fmt.Errorf("%w: %s", schema.ErrUnknownOperator, rawOp)
		}
		for path, arg := range targets {
			field, err := resolve(model, embedded, path)
			if err != nil {
				return err
			}
			if err := checkOperator(validator, op, path, field, arg); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkOperator(validator *schema.Validator, op Op, path string, field schema.Field, arg any) error {
	switch {
	case op == OpSet:
		// Every type is settable; the value just has to fit it.
		if err := validator.ValidateField(field.Type, arg); err != nil {
			return err
		}
	case op == OpUnset:
		if !field.HasRequired || field.Required {
			return schema.Invalid("field %s cannot be unset because it is required", path)
		}
	case op == OpInc:
		if !schema.IsNumber(arg) {
			return schema.Invalid("cannot increment by value %v because it is not a number", arg)
		}
		if !field.Type.IsNumeric() {
			return schema.Invalid("cannot increment field %s because it is not a numeric type", path)
		}
		// The magnitude is checked against the field type; the sign is not.
		// A negative $inc on a positive-only type therefore validates even
		// though applying it could take the stored value out of range.
		if err := validator.ValidateField(field.Type, schema.AbsNumber(arg)); err != nil {
			return err
		}
	case op.isArrayOp():
		if !field.Type.IsListType() {
			return schema.Invalid("field %s is not a list type", path)
		}
	case op == OpRename:
		return schema.Invalid("rename is currently not supported")
	case op == OpBit:
		if !field.Type.IsInteger() {
			return schema.Invalid("field %s is not an integer type", path)
		}
	}
	return nil
}

// resolve maps a field path to its declared descriptor. A bare name is a
// top-level field. A dotted path walks into embedded models: positional ($)
// and list-index segments are dropped, the segment before the leaf names the
// embedded model, either directly or through the resource alias of a
// top-level field.
func resolve(model *schema.Model, embedded schema.ModelSet, path string) (schema.Field, error) {
	if !strings.Contains(path, ".") {
		field, ok := model.Fields[path]
		if !ok {
			return schema.Field{}, schema.Invalid("field %s is not declared by model %s", path, model.Name)
		}
		return field, nil
	}

	parts := make([]string, 0, 4)
	for _, part := range strings.Split(path, ".") {
		if isPositional(part) {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) < 2 {
		return schema.Field{}, schema.Invalid("cannot resolve field path %s", path)
	}
	leaf := parts[len(parts)-1]
	owner := parts[len(parts)-2]

	if embeddedModel, ok := embedded[owner]; ok {
		if field, ok := embeddedModel.Fields[leaf]; ok {
			return field, nil
		}
		return schema.Field{}, schema.Invalid("field %s is not declared by model %s", leaf, owner)
	}
	if parent, ok := model.Fields[owner]; ok {
		name := owner
		if parent.Resource != "" {
			name = parent.Resource
		}
		embeddedModel, ok := embedded[name]
		if !ok {
			return schema.Field{}, schema.Invalid("embedded model %s is not loaded", name)
		}
		field, ok := embeddedModel.Fields[leaf]
		if !ok {
			return schema.Field{}, schema.Invalid("field %s is not declared by model %s", leaf, name)
		}
		return field, nil
	}
	return schema.Field{}, schema.Invalid("cannot resolve field path %s", path)
}

func isPositional(segment string) bool {
	if segment == "$" {
		return true
	}
	_, err := strconv.Atoi(segment)
	return err == nil
}

// ModelNames scans every dotted path in the modifier and classifies the
// interior segments: names that are top-level fields of the primary model
// resolve to real embedded model names (through their resource alias when
// one is declared); the rest stay unknown and are left for the caller to
// try as model ids. Positional and list-index segments are skipped.
func ModelNames(model *schema.Model, mod Modifier) (real []string, unknown []string) {
	candidates := make(map[string]bool)
	for _, targets := range mod {
		for path := range targets {
			if !strings.Contains(path, ".") {
				continue
			}
			parts := strings.Split(path, ".")
			for _, part := range parts[:len(parts)-1] {
				if !isPositional(part) {
					candidates[part] = true
				}
			}
		}
	}

	realSet := make(map[string]bool)
	unknownSet := make(map[string]bool)
	for name := range candidates {
		if field, ok := model.Fields[name]; ok {
			if field.Resource != "" {
				realSet[field.Resource] = true
			} else {
				realSet[name] = true
			}
			continue
		}
		unknownSet[name] = true
	}
	for name := range unknownSet {
		if realSet[name] {
			delete(unknownSet, name)
		}
	}

	for name := range realSet {
		real = append(real, name)
	}
	for name := range unknownSet {
		unknown = append(unknown, name)
	}
	return real, unknown
}
