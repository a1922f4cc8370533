package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName           = "SignIn"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultAuthTokenTTL      = 24 * time.Hour
	defaultMultifactorTTL    = 5 * time.Minute
	defaultAttemptTTL        = time.Hour
	defaultSignInTimeout     = 30 * time.Second
	defaultSocialProvider    = "google"
	defaultLoginAttemptsMin  = 5
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
	authTokenTTLEnvVar       = "AUTH_TOKEN_TTL"
	multifactorTTLEnvVar     = "MULTIFACTOR_CODE_TTL"
	attemptTTLEnvVar         = "ATTEMPT_TTL"
	signInTimeoutEnvVar      = "SIGNIN_TIMEOUT"
	loginAttemptsEnvVar      = "LOGIN_ATTEMPTS_PER_MINUTE"
	authTokenSecretEnvVar    = "AUTH_TOKEN_SECRET"
	socialTokenSecretEnvVar  = "SOCIAL_TOKEN_SECRET"
	minSecretLength          = 32
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	AuthTokenSecret    string
	AuthTokenTTL       time.Duration
	MultifactorCodeTTL time.Duration
	AttemptTTL         time.Duration
	SignInTimeout      time.Duration

	SocialProvider    string
	SocialTokenSecret string

	LoginAttemptsPerMinute int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:                getEnv("APP_NAME", defaultAppName),
		AppEnv:                 getEnv("APP_ENV", defaultAppEnv),
		Port:                   getEnv("PORT", defaultPort),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		ShutdownPeriod:         defaultShutdownDelay,
		IdempotencyTTL:         defaultIdempotencyTTL,
		AuthTokenSecret:        os.Getenv(authTokenSecretEnvVar),
		AuthTokenTTL:           defaultAuthTokenTTL,
		MultifactorCodeTTL:     defaultMultifactorTTL,
		AttemptTTL:             defaultAttemptTTL,
		SignInTimeout:          defaultSignInTimeout,
		SocialProvider:         strings.ToLower(getEnv("SOCIAL_PROVIDER", defaultSocialProvider)),
		SocialTokenSecret:      os.Getenv(socialTokenSecretEnvVar),
		LoginAttemptsPerMinute: defaultLoginAttemptsMin,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AuthTokenTTL, err = durationFromEnv("", authTokenTTLEnvVar, cfg.AuthTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.MultifactorCodeTTL, err = durationFromEnv("", multifactorTTLEnvVar, cfg.MultifactorCodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.AttemptTTL, err = durationFromEnv("", attemptTTLEnvVar, cfg.AttemptTTL); err != nil {
		return Config{}, err
	}
	if cfg.SignInTimeout, err = durationFromEnv("", signInTimeoutEnvVar, cfg.SignInTimeout); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(loginAttemptsEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginAttemptsEnvVar, err)
		}
		cfg.LoginAttemptsPerMinute = n
	}

	if cfg.IsDev() {
		if cfg.AuthTokenSecret == "" {
			cfg.AuthTokenSecret = "development-auth-token-secret-please-change"
		}
		if cfg.SocialTokenSecret == "" {
			cfg.SocialTokenSecret = "development-social-token-secret-please-change"
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if len(cfg.AuthTokenSecret) < minSecretLength {
		return Config{}, fmt.Errorf("%s must be at least %d bytes", authTokenSecretEnvVar, minSecretLength)
	}

	if len(cfg.SocialTokenSecret) < minSecretLength {
		return Config{}, fmt.Errorf("%s must be at least %d bytes", socialTokenSecretEnvVar, minSecretLength)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the application runs in a development-like environment,
// where missing Postgres/Redis fall back to in-memory stores.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv reads either an integer seconds variable or a Go duration
// variable, preferring the seconds form when both are present.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
