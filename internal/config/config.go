package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName           = "QuickId"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultSessionTTL        = 30 * time.Minute
	defaultLockTimeout       = 3 * time.Second
	defaultEnrollThreshold   = 0.5
	defaultIdentifyThreshold = 0.6
	defaultSignupBonus       = 100.0
	defaultDescriptorLen     = 128

	devSessionSecret = "dev_secret_change_me"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	SessionSecret  string
	SessionTTL     time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// EnrollThreshold is the maximum descriptor distance accepted when checking
	// a new enrollment against existing templates. It must be strictly smaller
	// than IdentifyThreshold so that duplicate registration stays harder to
	// pass than login.
	EnrollThreshold   float64
	IdentifyThreshold float64

	// SignupBonus is the balance credited to every newly enrolled identity.
	SignupBonus float64

	// LockTimeout bounds how long a transfer waits for balance row locks before
	// failing as retryable.
	LockTimeout time.Duration

	// DescriptorLen is the expected probe vector length.
	DescriptorLen int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionTTL:        defaultSessionTTL,
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		EnrollThreshold:   defaultEnrollThreshold,
		IdentifyThreshold: defaultIdentifyThreshold,
		SignupBonus:       defaultSignupBonus,
		LockTimeout:       defaultLockTimeout,
		DescriptorLen:     defaultDescriptorLen,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv("LOCK_TIMEOUT", cfg.LockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.EnrollThreshold, err = floatEnv("ENROLL_THRESHOLD", cfg.EnrollThreshold); err != nil {
		return Config{}, err
	}
	if cfg.IdentifyThreshold, err = floatEnv("IDENTIFY_THRESHOLD", cfg.IdentifyThreshold); err != nil {
		return Config{}, err
	}
	if cfg.SignupBonus, err = floatEnv("SIGNUP_BONUS", cfg.SignupBonus); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DESCRIPTOR_LEN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DESCRIPTOR_LEN: %q", v)
		}
		cfg.DescriptorLen = n
	}

	if cfg.EnrollThreshold <= 0 || cfg.IdentifyThreshold <= 0 {
		return Config{}, fmt.Errorf("thresholds must be positive")
	}
	if cfg.EnrollThreshold >= cfg.IdentifyThreshold {
		return Config{}, fmt.Errorf("ENROLL_THRESHOLD (%g) must be strictly below IDENTIFY_THRESHOLD (%g)",
			cfg.EnrollThreshold, cfg.IdentifyThreshold)
	}
	if cfg.SignupBonus < 0 {
		return Config{}, fmt.Errorf("SIGNUP_BONUS must not be negative")
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.SessionSecret = devSessionSecret
	}

	// Outside development both stores are mandatory; in dev the server falls
	// back to in-memory backends.
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY as a Go duration, or KEY_SECONDS as an integer second
// count, falling back when neither is set.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
