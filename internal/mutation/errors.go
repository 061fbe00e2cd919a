package mutation

import (
	"fmt"

	"github.com/magdb/mag/internal/schema"
)

// UnknownModelError reports a resource with no stored model definition.
type UnknownModelError struct {
	Name string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no model definition for %q", e.Name)
}

// ConflictError reports a create against an id that already exists.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s/%s already exists", e.Resource, e.ID)
}

// NotFoundError reports a mutation target that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no matching instances in %s", e.Resource)
	}
	return fmt.Sprintf("%s/%s does not exist", e.Resource, e.ID)
}

// MismatchError reports an update payload whose declared id or model
// disagrees with the addressed resource.
type MismatchError struct {
	Key  string
	Got  string
	Want string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("payload %s %q does not match addressed %q", e.Key, e.Got, e.Want)
}

// AuthorizationError reports a denied permission check.
type AuthorizationError struct {
	Actor     string
	Resource  string
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q may not %s %s", e.Actor, e.Operation, e.Resource)
}

// IsValidationFailure reports whether err belongs to the validation
// category: structurally or semantically bad input rather than a missing
// or conflicting target. Configuration defects (unknown type tags,
// unsupported operators) are deliberately excluded.
func IsValidationFailure(err error) bool {
	return schema.IsInvalidInstance(err)
}
