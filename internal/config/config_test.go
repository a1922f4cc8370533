package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AUTH_TOKEN_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.SocialProvider)
	assert.NotEmpty(t, cfg.AuthTokenSecret, "development secret fallback")
	assert.Equal(t, 5*time.Minute, cfg.MultifactorCodeTTL)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	assert.Error(t, err, "missing DATABASE_URL")
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/signin")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTH_TOKEN_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("SIGNIN_TIMEOUT", "2s")
	t.Setenv("LOGIN_ATTEMPTS_PER_MINUTE", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 2*time.Second, cfg.SignInTimeout)
	assert.Equal(t, 9, cfg.LoginAttemptsPerMinute)

	t.Setenv("SIGNIN_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err, "invalid duration")
}
