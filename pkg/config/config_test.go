package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TP_INT", "42")
	t.Setenv("TP_BAD_INT", "x")
	t.Setenv("TP_DUR", "90s")
	t.Setenv("TP_NEG_DUR", "-1s")
	t.Setenv("TP_BOOL", "false")

	assert.Equal(t, 42, EnvIntDefault("TP_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("TP_BAD_INT", 1))
	assert.Equal(t, 7, EnvIntDefault("TP_MISSING", 7))
	assert.Equal(t, 90*time.Second, EnvDurationDefault("TP_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDurationDefault("TP_NEG_DUR", time.Second))
	assert.False(t, EnvBoolDefault("TP_BOOL", true))
	assert.Equal(t, "dflt", EnvDefault("TP_MISSING", "dflt"))
}

func TestLoad_TokenTTLDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REFRESH_TOKEN_TTL", "")
	t.Setenv("APP_ENV", "production")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.True(t, cfg.Production())
}
