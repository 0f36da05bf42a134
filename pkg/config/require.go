package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// MustValidate stops the process on a config that would run but be unsafe.
func MustValidate(c Config) {
	MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	MustNonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET")
	MustNonEmptyBytes(c.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	if string(c.JWTAccessSecret) == string(c.JWTRefreshSecret) {
		log.Fatalf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
}
