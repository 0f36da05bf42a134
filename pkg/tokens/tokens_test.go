package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccessSecret  = []byte("test-jwt-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newTestCodec(t *testing.T, now func() time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "taskpilot-test",
		Now:           now,
	})
	require.NoError(t, err)
	return c
}

func TestNewCodec_RejectsBadSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		access, refresh []byte
	}{
		{name: "empty access", access: nil, refresh: testRefreshSecret},
		{name: "empty refresh", access: testAccessSecret, refresh: nil},
		{name: "shared secret", access: []byte("same"), refresh: []byte("same")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCodec(Config{AccessSecret: tt.access, RefreshSecret: tt.refresh})
			assert.ErrorIs(t, err, ErrBadConfig)
		})
	}
}

func TestCodec_IssueVerify_Access(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)
	userID := uuid.NewString()

	token, exp, err := c.Issue(userID, "admin", Access)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := c.Verify(token, Access)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, Access, claims.Type)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
}

func TestCodec_IssueVerify_Refresh(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)
	userID := uuid.NewString()

	token, exp, err := c.Issue(userID, "admin", Refresh)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 2*time.Second)

	claims, err := c.Verify(token, Refresh)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Empty(t, claims.Role, "refresh tokens carry no role")
	assert.Equal(t, Refresh, claims.Type)
}

func TestCodec_IssueTwice_TokensDiffer(t *testing.T) {
	t.Parallel()

	fixed := time.Now()
	c := newTestCodec(t, func() time.Time { return fixed })

	a, _, err := c.Issue("u1", "", Refresh)
	require.NoError(t, err)
	b, _, err := c.Issue("u1", "", Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodec_Verify_WrongKindRejected(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)

	access, _, err := c.Issue("u1", "user", Access)
	require.NoError(t, err)
	refresh, _, err := c.Issue("u1", "user", Refresh)
	require.NoError(t, err)

	_, err = c.Verify(access, Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Verify(refresh, Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Verify_TypClaimChecked(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)

	// signed with the refresh key but claims to be an access token
	claims := Claims{
		Type: Access,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "taskpilot-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testRefreshSecret)
	require.NoError(t, err)

	_, err = c.Verify(forged, Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Verify_Expired(t *testing.T) {
	t.Parallel()

	past := newTestCodec(t, func() time.Time { return time.Now().Add(-time.Hour) })
	token, _, err := past.Issue("u1", "user", Access)
	require.NoError(t, err)

	_, err = newTestCodec(t, nil).Verify(token, Access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestCodec_Verify_Malformed(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-valid-jwt"},
		{name: "foreign secret", token: mustSign(t, []byte("other"), "u1", Access)},
		{name: "alg none", token: mustSignNone(t, "u1")},
		{name: "no subject", token: mustSign(t, testAccessSecret, "", Access)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Verify(tt.token, Access)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodec_UnknownKind(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t, nil)
	_, _, err := c.Issue("u1", "", Kind("id"))
	assert.ErrorIs(t, err, ErrBadConfig)
}

func mustSign(t *testing.T, key []byte, sub string, kind Kind) string {
	t.Helper()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "taskpilot-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func mustSignNone(t *testing.T, sub string) string {
	t.Helper()
	claims := Claims{
		Type: Access,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}
