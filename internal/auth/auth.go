// Package auth carries the acting user through a request. Mutations stamp
// the actor into document metadata and version records; requests without a
// resolvable actor fall back to Unknown rather than failing.
package auth

import (
	"context"
	"strings"
)

// Actor identifies who performed a mutation.
type Actor struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// Unknown is stamped when no actor can be resolved for a request.
var Unknown = Actor{ID: "unknown", Display: "unknown"}

// IsUnknown reports whether the actor is the Unknown placeholder.
func (a Actor) IsUnknown() bool {
	return a.ID == Unknown.ID
}

type contextKey struct{}

// ContextWithActor attaches an actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx, or Unknown.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(contextKey{}).(Actor); ok {
		return actor
	}
	return Unknown
}

// Authenticator resolves a bearer token to an actor.
type Authenticator interface {
	// Authenticate returns the actor for token, or false when the token is
	// not recognized. An empty token never authenticates.
	Authenticate(token string) (Actor, bool)
}

// TokenAuthenticator maps static bearer tokens to actors.
type TokenAuthenticator struct {
	actors map[string]Actor
}

// NewTokenAuthenticator builds an authenticator from a token→actor table.
func NewTokenAuthenticator(actors map[string]Actor) *TokenAuthenticator {
	table := make(map[string]Actor, len(actors))
	for token, actor := range actors {
		if token == "" {
			continue
		}
		if actor.Display == "" {
			actor.Display = actor.ID
		}
		table[token] = actor
	}
	return &TokenAuthenticator{actors: table}
}

func (a *TokenAuthenticator) Authenticate(token string) (Actor, bool) {
	actor, ok := a.actors[token]
	return actor, ok
}

// AllowAll accepts any token, deriving the actor id from the token itself.
// It serves development setups where no token table is configured.
type AllowAll struct{}

func (AllowAll) Authenticate(token string) (Actor, bool) {
	if token == "" {
		return Unknown, true
	}
	return Actor{ID: token, Display: token}, true
}

// Authorizer decides whether an actor may run an operation on a resource.
// Mutations consult it before touching any model or instance.
type Authorizer interface {
	Allowed(ctx context.Context, actor Actor, resource, operation string) bool
}

// PermitAll authorizes every operation.
type PermitAll struct{}

func (PermitAll) Allowed(context.Context, Actor, string, string) bool { return true }

// DenyUnknown authorizes any resolved actor and rejects the Unknown
// placeholder for everything but reads.
type DenyUnknown struct{}

func (DenyUnknown) Allowed(_ context.Context, actor Actor, _ string, operation string) bool {
	if operation == "read" {
		return true
	}
	return !actor.IsUnknown()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
