// Package authz holds the single role/ownership predicate used by every
// resource operation, and the verified caller identity carried in context.
package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

var ErrForbidden = errors.New("access denied")

// Identity is the authenticated caller. It is only ever built from a verified
// access token.
type Identity struct {
	ID   uuid.UUID
	Role string
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

type Decision int

const (
	Forbidden Decision = iota
	Authorized
)

func (d Decision) String() string {
	if d == Authorized {
		return "authorized"
	}
	return "forbidden"
}

// Err returns ErrForbidden for a Forbidden decision and nil otherwise.
func (d Decision) Err() error {
	if d == Authorized {
		return nil
	}
	return ErrForbidden
}

func RequireRole(id Identity, role string) Decision {
	if role != "" && id.Role == role {
		return Authorized
	}
	return Forbidden
}

// RequireOwnerOrRole authorizes the caller when it holds role or owns the
// resource.
func RequireOwnerOrRole(id Identity, ownerID uuid.UUID, role string) Decision {
	if RequireRole(id, role) == Authorized {
		return Authorized
	}
	if id.ID != uuid.Nil && id.ID == ownerID {
		return Authorized
	}
	return Forbidden
}

type ctxKey struct{}

func IntoContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Check applies the owner-or-admin rule to the identity bound in ctx. A
// context without an identity is always forbidden.
func Check(ctx context.Context, ownerID uuid.UUID) error {
	id, ok := FromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	return RequireOwnerOrRole(id, ownerID, models.RoleAdmin).Err()
}

// CheckAdmin is Check for admin-only operations.
func CheckAdmin(ctx context.Context) error {
	id, ok := FromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	return RequireRole(id, models.RoleAdmin).Err()
}
