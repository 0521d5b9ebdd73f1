package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Valkey    ValkeyConfig
	GitHub    PlatformConfig
	GitLab    PlatformConfig
	Bitbucket PlatformConfig
	Azure     PlatformConfig
	Forgejo   PlatformConfig
	Review    ReviewConfig
	Suggest   SuggestConfig
	Auth      AuthConfig
	MCP       MCPConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxPayloadBytes int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// MigrateDSN returns the DSN using the pgx5 scheme registered by
// golang-migrate's pgx/v5 driver.
func (d DatabaseConfig) MigrateDSN() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

// PlatformConfig holds the API endpoint, credentials and webhook secret for
// one source-control platform. An empty Token disables the adapter.
type PlatformConfig struct {
	BaseURL       string
	Token         string
	Username      string // Bitbucket app-password user, Azure PAT user
	WebhookSecret string
	Organization  string // Azure DevOps organization
	BotUsername   string
}

func (p PlatformConfig) Enabled() bool { return p.Token != "" }

type ReviewConfig struct {
	PipelineTimeout       time.Duration
	CallTimeout           time.Duration
	DedupTTL              time.Duration
	TransientRetryDelay   time.Duration
	BotMention            string
	DefaultMaxSuggestions int
	RateLimitPerSecond    float64
	RateLimitBurst        int
}

type SuggestConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type AuthConfig struct {
	Enabled      bool
	IssuerURL    string
	PublicIssuer string
	Audience     string
}

type WorkerConfig struct {
	ConsumerID  string
	Concurrency int
}

type MCPConfig struct {
	Addr    string
	BaseURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
			MaxPayloadBytes: int64(getEnvInt("SERVER_MAX_PAYLOAD_BYTES", 25<<20)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "reviewgate"),
			Password: getEnv("DB_PASSWORD", "reviewgate"),
			Name:     getEnv("DB_NAME", "reviewgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		GitHub:    loadPlatform("GITHUB", "https://api.github.com/"),
		GitLab:    loadPlatform("GITLAB", "https://gitlab.com/api/v4"),
		Bitbucket: loadPlatform("BITBUCKET", "https://api.bitbucket.org/2.0"),
		Azure:     loadPlatform("AZURE", "https://dev.azure.com"),
		Forgejo:   loadPlatform("FORGEJO", "https://codeberg.org/api/v1"),
		Review: ReviewConfig{
			PipelineTimeout:       getEnvDuration("REVIEW_PIPELINE_TIMEOUT", 10*time.Minute),
			CallTimeout:           getEnvDuration("REVIEW_CALL_TIMEOUT", 30*time.Second),
			DedupTTL:              getEnvDuration("REVIEW_DEDUP_TTL", 60*time.Second),
			TransientRetryDelay:   getEnvDuration("REVIEW_TRANSIENT_RETRY_DELAY", 500*time.Millisecond),
			BotMention:            getEnv("REVIEW_BOT_MENTION", "@reviewgate"),
			DefaultMaxSuggestions: getEnvInt("REVIEW_DEFAULT_MAX_SUGGESTIONS", 9),
			RateLimitPerSecond:    getEnvFloat("REVIEW_RATE_LIMIT_PER_SECOND", 5),
			RateLimitBurst:        getEnvInt("REVIEW_RATE_LIMIT_BURST", 10),
		},
		Suggest: SuggestConfig{
			BaseURL: getEnv("SUGGEST_BASE_URL", "http://localhost:8090"),
			APIKey:  getEnv("SUGGEST_API_KEY", ""),
			Timeout: getEnvDuration("SUGGEST_TIMEOUT", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", false),
			IssuerURL:    getEnv("AUTH_ISSUER_URL", ""),
			PublicIssuer: getEnv("AUTH_PUBLIC_ISSUER", ""),
			Audience:     getEnv("AUTH_AUDIENCE", "reviewgate"),
		},
		MCP: MCPConfig{
			Addr:    getEnv("MCP_ADDR", ":8081"),
			BaseURL: getEnv("MCP_BASE_URL", ""),
		},
		Worker: WorkerConfig{
			ConsumerID:  getEnv("WORKER_CONSUMER_ID", hostname()),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		},
	}

	if cfg.Worker.Concurrency < 1 {
		cfg.Worker.Concurrency = 1
	}
	if cfg.Review.DedupTTL <= 0 {
		return nil, fmt.Errorf("REVIEW_DEDUP_TTL must be positive")
	}
	return cfg, nil
}

func loadPlatform(prefix, defaultURL string) PlatformConfig {
	return PlatformConfig{
		BaseURL:       getEnv(prefix+"_BASE_URL", defaultURL),
		Token:         getEnv(prefix+"_TOKEN", ""),
		Username:      getEnv(prefix+"_USERNAME", ""),
		WebhookSecret: getEnv(prefix+"_WEBHOOK_SECRET", ""),
		Organization:  getEnv(prefix+"_ORGANIZATION", ""),
		BotUsername:   getEnv(prefix+"_BOT_USERNAME", ""),
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "worker"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("500ms", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
