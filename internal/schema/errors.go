package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownFieldType marks a model declaring a type tag outside the
	// closed FieldType set. This is a schema defect, never caught internally.
	ErrUnknownFieldType = errors.New("unknown field type")

	// ErrUnknownOperator marks a modifier using an operator outside the
	// supported set.
	ErrUnknownOperator = errors.New("unknown modifier operator")
)

// ValidationError is a field or modifier value failing its type or semantic
// rule.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// OrphanedInstanceError reports an instance with no _model tag.
type OrphanedInstanceError struct{}

func (e *OrphanedInstanceError) Error() string {
	return "the instance does not have a model key"
}

// InvalidFieldsError reports instance fields not declared by the model.
type InvalidFieldsError struct {
	Fields []string
}

func (e *InvalidFieldsError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid field: %s", e.Fields[0])
	}
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// MissingFieldsError reports required model fields absent from the instance.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("missing field: %s", e.Fields[0])
	}
	return fmt.Sprintf("missing fields: %s", strings.Join(e.Fields, ", "))
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsInvalidInstance reports whether err is one of the structural instance
// failures (orphaned, invalid fields, missing fields) or a value-level
// validation error.
func IsInvalidInstance(err error) bool {
	var orphaned *OrphanedInstanceError
	var invalid *InvalidFieldsError
	var missing *MissingFieldsError
	var validation *ValidationError
	return errors.As(err, &orphaned) || errors.As(err, &invalid) ||
		errors.As(err, &missing) || errors.As(err, &validation)
}
