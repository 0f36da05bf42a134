// Package tokens issues and verifies the signed, expiring JWTs used for
// sessions. Access and refresh tokens are signed with independent secrets and
// carry their kind in the signed "typ" claim, so one can never stand in for
// the other.
package tokens

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrBadConfig    = errors.New("invalid token config")
)

type Claims struct {
	Role string `json:"role,omitempty"`
	Type Kind   `json:"typ"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrBadConfig)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrBadConfig)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{cfg: cfg}, nil
}

func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == Refresh {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

func (c *Codec) secret(kind Kind) ([]byte, error) {
	switch kind {
	case Access:
		return c.cfg.AccessSecret, nil
	case Refresh:
		return c.cfg.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrBadConfig, kind)
	}
}

// Issue signs a token of the given kind for subject. Role is only embedded in
// access tokens; refresh tokens carry identity alone.
func (c *Codec) Issue(subject, role string, kind Kind) (string, time.Time, error) {
	key, err := c.secret(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrBadConfig)
	}

	now := c.cfg.Now()
	exp := now.Add(c.TTL(kind))
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if kind == Access {
		claims.Role = role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, expiry and kind.
func (c *Codec) Verify(token string, kind Kind) (*Claims, error) {
	key, err := c.secret(kind)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.cfg.Now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid || claims.Type != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
