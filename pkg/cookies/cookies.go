package cookies

import (
	"net/http"
	"time"
)

const (
	AccessToken  = "accessToken"
	RefreshToken = "refreshToken"
)

// Jar builds the auth cookies. Secure is off only outside production so the
// frontend dev server can run over plain http.
type Jar struct {
	Path   string
	Secure bool
}

func (j Jar) path() string {
	if j.Path == "" {
		return "/"
	}
	return j.Path
}

func (j Jar) Create(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.path(),
		Expires:  expires,
		MaxAge:   maxAge(expires),
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (j Jar) Delete(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     j.path(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func maxAge(expires time.Time) int {
	secs := int(time.Until(expires).Seconds())
	if secs <= 0 {
		return -1
	}
	return secs
}
