package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestUserService(t *testing.T) {
	f := newFixture(t)
	users := &UserService{Store: f.repo, Events: f.events}
	alice := f.seedUser(t, "alice", "")
	bob := f.seedUser(t, "bob", "")

	list, err := users.List(as(alice), PageQuery{Search: "bo"})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, bob.ID, list.Users[0].ID)

	_, err = users.List(context.Background(), PageQuery{})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	got, err := users.Get(as(alice), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)

	_, err = users.Get(as(alice), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := users.Update(as(alice), alice.ID, UserUpdate{FullName: ptr("Alice Liddell")})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.FullName)

	_, err = users.Update(as(alice), bob.ID, UserUpdate{FullName: ptr("hijack")})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = users.Update(as(alice), alice.ID, UserUpdate{Role: ptr(models.RoleAdmin)})
	assert.ErrorIs(t, err, authz.ErrForbidden, "users cannot promote themselves")

	promoted, err := users.Update(asAdmin(), alice.ID, UserUpdate{Role: ptr(models.RoleAdmin)})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	_, err = users.Update(asAdmin(), uuid.New(), UserUpdate{FullName: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, users.Delete(as(bob), alice.ID), authz.ErrForbidden)
	require.NoError(t, users.Delete(asAdmin(), bob.ID))
	assert.ErrorIs(t, users.Delete(asAdmin(), bob.ID), ErrNotFound)
}

func TestUserService_UpdateKeepsLoginUnambiguous(t *testing.T) {
	f := newFixture(t)
	users := &UserService{Store: f.repo, Events: f.events}
	alice := f.seedUser(t, "alice", "")
	mallory := f.seedUser(t, "mallory", "")

	_, err := users.Update(as(mallory), mallory.ID, UserUpdate{Username: ptr(alice.Email)})
	assert.ErrorIs(t, err, ErrValidation, "username cannot look like an email")

	for _, bad := range []string{"ma", "mal lory", "a@"} {
		_, err = users.Update(as(mallory), mallory.ID, UserUpdate{Username: ptr(bad)})
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
	for _, bad := range []string{"a@", "Alice <alice@example.org>", "no-at-sign"} {
		_, err = users.Update(as(mallory), mallory.ID, UserUpdate{Email: ptr(bad)})
		assert.ErrorIs(t, err, ErrValidation, bad)
	}

	_, err = users.Update(as(mallory), mallory.ID, UserUpdate{Email: ptr(alice.Email)})
	assert.ErrorIs(t, err, ErrConflict)

	sess, err := f.auth.Login(context.Background(), alice.Email, testPassword)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sess.User.ID)

	renamed, err := users.Update(as(mallory), mallory.ID, UserUpdate{Username: ptr("Mallory2"), Email: ptr("M2@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "mallory2", renamed.Username)
	assert.Equal(t, "m2@example.com", renamed.Email)
}
