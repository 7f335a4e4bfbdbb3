package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AttemptStoreMemory   = "memory"
	AttemptStoreRedis    = "redis"
	AttemptStorePostgres = "postgres"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	DBDSN        string
	SchemaPath   string
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string
	AdminEmails  []string

	AdminBootstrapEmail    string
	AdminBootstrapUsername string
	AdminBootstrapPassword string

	AttemptStore string
	RedisURL     string
	TrustProxy   bool
	LoginRate    string

	FCMProjectID         string
	FCMCredentialsPath   string
	LockoutAlertTokens   []string
	AttemptSweepInterval time.Duration
}

// Load reads .env (if present) into the process environment without
// overriding variables that are already set, then parses the environment.
func Load() (Config, error) {
	if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV"),
		Addr:         getenv("APP_ADDR"),
		DBDSN:        getenv("APP_DB_DSN"),
		SchemaPath:   getenv("APP_SCHEMA_PATH"),
		LogLevel:     getenv("APP_LOG_LEVEL"),
		CookieSecret: getenv("APP_COOKIE_SECRET"),
		RedisURL:     getenv("APP_REDIS_URL"),
		LoginRate:    strings.TrimSpace(getenv("APP_LOGIN_RATE")),

		FCMProjectID:       strings.TrimSpace(getenv("APP_FCM_PROJECT_ID")),
		FCMCredentialsPath: strings.TrimSpace(getenv("APP_FCM_CREDENTIALS")),
		LockoutAlertTokens: parseList(getenv("APP_LOCKOUT_ALERT_TOKENS")),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.LoginRate == "" {
		cfg.LoginRate = "30-M"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = parsePositiveDuration(getenv, "APP_SESSION_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AttemptSweepInterval, err = parsePositiveDuration(getenv, "APP_ATTEMPT_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	if raw := getenv("APP_TRUST_PROXY"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TRUST_PROXY: %w", err)
		}
		cfg.TrustProxy = v
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	cfg.AttemptStore = strings.TrimSpace(strings.ToLower(getenv("APP_ATTEMPT_STORE")))
	if cfg.AttemptStore == "" {
		cfg.AttemptStore = AttemptStoreMemory
		if cfg.DBDSN != "" {
			cfg.AttemptStore = AttemptStorePostgres
		}
	}
	switch cfg.AttemptStore {
	case AttemptStoreMemory:
	case AttemptStoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("APP_REDIS_URL: required when APP_ATTEMPT_STORE=redis")
		}
	case AttemptStorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required when APP_ATTEMPT_STORE=postgres")
		}
	default:
		return Config{}, errors.New("APP_ATTEMPT_STORE: must be one of memory, redis, postgres")
	}

	cfg.AdminEmails = parseEmails(getenv("APP_ADMIN_EMAILS"))
	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapUsername = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_USERNAME"))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapUsername == "" {
		cfg.AdminBootstrapUsername = "admin"
	}
	if cfg.AdminBootstrapEmail != "" && !contains(cfg.AdminEmails, cfg.AdminBootstrapEmail) {
		cfg.AdminEmails = append(cfg.AdminEmails, cfg.AdminBootstrapEmail)
	}

	if len(cfg.LockoutAlertTokens) > 0 && cfg.FCMCredentialsPath == "" {
		return Config{}, errors.New("APP_FCM_CREDENTIALS: required when APP_LOCKOUT_ALERT_TOKENS is set")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

func parsePositiveDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func parseEmails(s string) []string {
	return parseList(strings.ToLower(s))
}

// parseList splits a comma separated value, trimming and de-duplicating.
func parseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func contains(ss []string, needle string) bool {
	for _, s := range ss {
		if s == needle {
			return true
		}
	}
	return false
}
