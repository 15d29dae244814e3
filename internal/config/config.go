package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int    `validate:"min=1,max=65535"`
	MasterSecret string `validate:"required"`
	GinMode      string `validate:"oneof=debug release test"`
	AppEnv       string
	LogLevel     string
	TLSCertFile  string        `validate:"required_with=TLSKeyFile"`
	TLSKeyFile   string        `validate:"required_with=TLSCertFile"`
	TokenExpiry  time.Duration `validate:"gt=0"`

	UpstreamBaseURL string        `validate:"required,url"`
	UpstreamTimeout time.Duration `validate:"gt=0"`
	PageSize        int           `validate:"min=20,max=50"`

	RetryCount      int           `validate:"min=0,max=10"`
	RetryDelay      time.Duration `validate:"min=0"`
	StaleTime       time.Duration `validate:"min=0"`
	SearchStaleTime time.Duration `validate:"min=0"`
	DetailStaleTime time.Duration `validate:"min=0"`
	SessionIdleTTL  time.Duration `validate:"gt=0"`
	SessionsFile    string
	RateLimitPerMin int `validate:"gt=0"`
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("port", c.Port),
		slog.String("gin_mode", c.GinMode),
		slog.String("app_env", c.AppEnv),
		slog.Bool("tls", c.TLSCertFile != ""),
		slog.String("upstream", c.UpstreamBaseURL),
		slog.Int("page_size", c.PageSize),
		slog.Int("retry_count", c.RetryCount),
		slog.Duration("stale_time", c.StaleTime),
		slog.Duration("session_idle_ttl", c.SessionIdleTTL),
		slog.Bool("persist_sessions", c.SessionsFile != ""),
	)
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads a .env file when present, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		AppEnv:          "development",
		LogLevel:        "info",
		TokenExpiry:     24 * time.Hour,
		UpstreamBaseURL: "https://dummyjson.com",
		UpstreamTimeout: 10 * time.Second,
		PageSize:        30,
		RetryCount:      3,
		RetryDelay:      time.Second,
		StaleTime:       5 * time.Minute,
		SearchStaleTime: 2 * time.Minute,
		DetailStaleTime: 10 * time.Minute,
		SessionIdleTTL:  30 * time.Minute,
		RateLimitPerMin: 60,
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"PAGE_SIZE", &cfg.PageSize},
		{"RETRY_COUNT", &cfg.RetryCount},
		{"RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMin},
	}
	for _, v := range ints {
		if raw := env.Getenv(v.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s", v.key)
			}
			*v.dst = n
		}
	}

	durations := []struct {
		key  string
		unit time.Duration
		dst  *time.Duration
	}{
		{"TOKEN_EXPIRY_SECONDS", time.Second, &cfg.TokenExpiry},
		{"UPSTREAM_TIMEOUT_SECONDS", time.Second, &cfg.UpstreamTimeout},
		{"RETRY_DELAY_MS", time.Millisecond, &cfg.RetryDelay},
		{"STALE_TIME_MS", time.Millisecond, &cfg.StaleTime},
		{"SEARCH_STALE_TIME_MS", time.Millisecond, &cfg.SearchStaleTime},
		{"DETAIL_STALE_TIME_MS", time.Millisecond, &cfg.DetailStaleTime},
		{"SESSION_IDLE_TTL_SECONDS", time.Second, &cfg.SessionIdleTTL},
	}
	for _, v := range durations {
		if raw := env.Getenv(v.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s", v.key)
			}
			*v.dst = time.Duration(n) * v.unit
		}
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("APP_ENV"); raw != "" {
		cfg.AppEnv = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("UPSTREAM_BASE_URL"); raw != "" {
		cfg.UpstreamBaseURL = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.SessionsFile = env.Getenv("SESSIONS_STATE_FILE")

	if err := validate.Struct(cfg); err != nil {
		return Config{}, invalidConfig(err)
	}
	return cfg, nil
}

var validate = validator.New()

var envNames = map[string]string{
	"Port":            "PORT",
	"MasterSecret":    "MASTER_SECRET",
	"GinMode":         "GIN_MODE",
	"TLSCertFile":     "TLS_CERT_FILE",
	"TLSKeyFile":      "TLS_KEY_FILE",
	"TokenExpiry":     "TOKEN_EXPIRY_SECONDS",
	"UpstreamBaseURL": "UPSTREAM_BASE_URL",
	"UpstreamTimeout": "UPSTREAM_TIMEOUT_SECONDS",
	"PageSize":        "PAGE_SIZE",
	"RetryCount":      "RETRY_COUNT",
	"RetryDelay":      "RETRY_DELAY_MS",
	"StaleTime":       "STALE_TIME_MS",
	"SearchStaleTime": "SEARCH_STALE_TIME_MS",
	"DetailStaleTime": "DETAIL_STALE_TIME_MS",
	"SessionIdleTTL":  "SESSION_IDLE_TTL_SECONDS",
	"RateLimitPerMin": "RATE_LIMIT_PER_MINUTE",
}

func invalidConfig(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	name, ok := envNames[verrs[0].StructField()]
	if !ok {
		name = verrs[0].StructField()
	}
	return fmt.Errorf("invalid %s", name)
}
