// Package config loads the control plane's configuration from the
// environment, following the same getenv-with-fallback idiom the rest of
// this codebase's ancestry uses.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP      HTTPConfig
	Postgres  PostgresConfig
	Slack     SlackConfig
	Agent     AgentConfig
	Embedding EmbeddingConfig
	Engine    EngineConfig
	Sentry    SentryConfig
	Auth      AuthConfig
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
}

// AuthConfig configures the management API's JWT/bcrypt auth layer,
// following the teacher's internal/service/auth.go NewAuthService.
type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	AllowSignup    string
	CookieSecure   string
	CookieSameSite string
	CookiePath     string
	CookieDomain   string
	AdminUsername  string
	AdminPassword  string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

// AgentConfig configures the LLM-driven agent runtime.
type AgentConfig struct {
	Provider      string // anthropic | openai | mock
	Model         string
	Endpoint      string
	APIKey        string
	MaxIterations int
	Timeout       time.Duration
}

type EmbeddingConfig struct {
	APIKey string
}

// EngineConfig tunes the workflow engine's queue and worker pool.
type EngineConfig struct {
	QueueCapacity int
	Workers       int
	DedupWindow   time.Duration
}

type SentryConfig struct {
	DSN string
}

func Load() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           getenv("HTTP_ADDR", ":8080"),
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "168h"),
			AllowSignup:    os.Getenv("ALLOW_SIGNUP"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookiePath:     os.Getenv("AUTH_COOKIE_PATH"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			AdminUsername:  os.Getenv("ADMIN_USERNAME"),
			AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Agent: AgentConfig{
			Provider:      getenv("LLM_PROVIDER", "mock"),
			Model:         getenv("LLM_MODEL", "claude-3-5-sonnet-20241022"),
			Endpoint:      os.Getenv("LLM_ENDPOINT"),
			APIKey:        os.Getenv("LLM_API_KEY"),
			MaxIterations: getint("AGENT_MAX_ITERATIONS", 10),
			Timeout:       getduration("AGENT_TIMEOUT", 300*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey: os.Getenv("AI_API_KEY"),
		},
		Engine: EngineConfig{
			QueueCapacity: getint("ENGINE_QUEUE_CAPACITY", 100),
			Workers:       getint("ENGINE_WORKERS", 4),
			DedupWindow:   getduration("ALERT_DEDUP_WINDOW", 5*time.Minute),
		},
		Sentry: SentryConfig{
			DSN: os.Getenv("SENTRY_DSN"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getint(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getduration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	out := []string{}
	start := 0
	for i := 0; i <= len(val); i++ {
		if i == len(val) || val[i] == ',' {
			if i > start {
				out = append(out, val[start:i])
			}
			start = i + 1
		}
	}
	return out
}
