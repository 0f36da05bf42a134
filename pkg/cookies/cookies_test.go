package cookies

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJar_Create(t *testing.T) {
	t.Parallel()

	jar := Jar{Secure: true}
	c := jar.Create(AccessToken, "tok", time.Now().Add(15*time.Minute))

	assert.Equal(t, AccessToken, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.InDelta(t, 15*60, c.MaxAge, 2)
}

func TestJar_Delete(t *testing.T) {
	t.Parallel()

	c := Jar{}.Delete(RefreshToken)
	assert.Equal(t, RefreshToken, c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.False(t, c.Secure)
	assert.True(t, c.HttpOnly)
}
