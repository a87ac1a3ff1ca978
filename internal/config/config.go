package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/commit-digest/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server    ServerConfig
	Database  DBConfig
	GitHub    GitHubConfig
	AI        AIConfig
	Email     EmailConfig
	Processor ProcessorConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	Logging   logger.Config
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DBConfig selects the SQL backend. Driver is "postgres" or "sqlite3".
type DBConfig struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
	APIBaseURL     string
}

// AIConfig configures the summarizer model.
type AIConfig struct {
	LLMProvider    string
	GeneratorModel string
	GeminiAPIKey   string
	OllamaHost     string
	// PromptTemplate picks the prompt variant; empty uses the one named after LLMProvider.
	PromptTemplate string
	MaxDiffChars   int
	RequestTimeout time.Duration
	// RateLimitPerMinute caps LLM calls across all instances sharing Redis. Zero disables it.
	RateLimitPerMinute int
}

type EmailConfig struct {
	Provider     string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	DashboardURL string
}

// ProcessorConfig mirrors the job processor options.
type ProcessorConfig struct {
	Enabled               bool
	PollInterval          time.Duration
	MaxConcurrent         int
	JobTimeout            time.Duration
	RetryBaseDelay        time.Duration
	RetryMaxDelay         time.Duration
	MaintenanceInterval   time.Duration
	CompletedRetention    int
	StaleJobTimeout       time.Duration
	ShutdownTimeout       time.Duration
	LifecycleWriteRetries int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebhookConfig controls how push events are ingested. Mode "direct" creates
// commit rows and jobs inside the request; "async" enqueues a
// webhook_processing job instead.
type WebhookConfig struct {
	Mode string
}

var (
	validProviders = map[string]bool{"gemini": true, "ollama": true}
	validDrivers   = map[string]bool{"postgres": true, "sqlite3": true}
	validModes     = map[string]bool{"direct": true, "async": true}
	validEmail     = map[string]bool{"smtp": true, "log": true}
)

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates the shared fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to read config file", "error", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USERNAME", "digest")
	v.SetDefault("DB_NAME", "commit_digest")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "commit-digest.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/commit-digest.private-key.pem")
	v.SetDefault("GITHUB_API_BASE_URL", "")

	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("GENERATOR_MODEL_NAME", "gemma3:latest")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("PROMPT_TEMPLATE", "")
	v.SetDefault("LLM_MAX_DIFF_CHARS", 120000)
	v.SetDefault("LLM_REQUEST_TIMEOUT", "2m")
	v.SetDefault("LLM_RATE_LIMIT_PER_MINUTE", 0)

	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("EMAIL_FROM", "digest@localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("DASHBOARD_URL", "http://localhost:8080")

	v.SetDefault("PROCESSOR_ENABLED", true)
	v.SetDefault("PROCESSOR_POLL_INTERVAL", "2s")
	v.SetDefault("PROCESSOR_MAX_CONCURRENT", 5)
	v.SetDefault("PROCESSOR_JOB_TIMEOUT", "5m")
	v.SetDefault("PROCESSOR_RETRY_BASE_DELAY", "1s")
	v.SetDefault("PROCESSOR_RETRY_MAX_DELAY", "30s")
	v.SetDefault("PROCESSOR_MAINTENANCE_INTERVAL", "5m")
	v.SetDefault("PROCESSOR_COMPLETED_RETENTION_DAYS", 7)
	v.SetDefault("PROCESSOR_STALE_JOB_TIMEOUT", "6m")
	v.SetDefault("PROCESSOR_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("PROCESSOR_LIFECYCLE_WRITE_RETRIES", 3)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("WEBHOOK_MODE", "direct")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

func fromViper(v *viper.Viper) *Config {
	provider := strings.ToLower(v.GetString("LLM_PROVIDER"))

	// Special handling for Gemini generator model name.
	generatorModel := v.GetString("GENERATOR_MODEL_NAME")
	if provider == "gemini" {
		if geminiModel := v.GetString("GEMINI_GENERATOR_MODEL_NAME"); geminiModel != "" {
			generatorModel = geminiModel
		} else {
			generatorModel = "gemini-2.5-flash"
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DBConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USERNAME"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			Path:            v.GetString("DB_PATH"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		GitHub: GitHubConfig{
			AppID:          v.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
			APIBaseURL:     v.GetString("GITHUB_API_BASE_URL"),
		},
		AI: AIConfig{
			LLMProvider:        provider,
			GeneratorModel:     generatorModel,
			GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
			OllamaHost:         v.GetString("OLLAMA_HOST"),
			PromptTemplate:     v.GetString("PROMPT_TEMPLATE"),
			MaxDiffChars:       v.GetInt("LLM_MAX_DIFF_CHARS"),
			RequestTimeout:     v.GetDuration("LLM_REQUEST_TIMEOUT"),
			RateLimitPerMinute: v.GetInt("LLM_RATE_LIMIT_PER_MINUTE"),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(v.GetString("EMAIL_PROVIDER")),
			From:         v.GetString("EMAIL_FROM"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			DashboardURL: v.GetString("DASHBOARD_URL"),
		},
		Processor: ProcessorConfig{
			Enabled:               v.GetBool("PROCESSOR_ENABLED"),
			PollInterval:          v.GetDuration("PROCESSOR_POLL_INTERVAL"),
			MaxConcurrent:         v.GetInt("PROCESSOR_MAX_CONCURRENT"),
			JobTimeout:            v.GetDuration("PROCESSOR_JOB_TIMEOUT"),
			RetryBaseDelay:        v.GetDuration("PROCESSOR_RETRY_BASE_DELAY"),
			RetryMaxDelay:         v.GetDuration("PROCESSOR_RETRY_MAX_DELAY"),
			MaintenanceInterval:   v.GetDuration("PROCESSOR_MAINTENANCE_INTERVAL"),
			CompletedRetention:    v.GetInt("PROCESSOR_COMPLETED_RETENTION_DAYS"),
			StaleJobTimeout:       v.GetDuration("PROCESSOR_STALE_JOB_TIMEOUT"),
			ShutdownTimeout:       v.GetDuration("PROCESSOR_SHUTDOWN_TIMEOUT"),
			LifecycleWriteRetries: v.GetInt("PROCESSOR_LIFECYCLE_WRITE_RETRIES"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Webhook: WebhookConfig{
			Mode: strings.ToLower(v.GetString("WEBHOOK_MODE")),
		},
		Logging: logger.Config{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}
}

// Validate checks the fields shared by the server and the CLI.
func (c *Config) Validate() error {
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("DB_DRIVER must be one of postgres, sqlite3; got %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite3" && c.Database.Path == "" {
		return fmt.Errorf("DB_PATH must be set for the sqlite3 driver")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	if err := c.Processor.Validate(); err != nil {
		return err
	}
	if !validModes[c.Webhook.Mode] {
		return fmt.Errorf("WEBHOOK_MODE must be direct or async; got %q", c.Webhook.Mode)
	}
	if !validEmail[c.Email.Provider] {
		return fmt.Errorf("EMAIL_PROVIDER must be smtp or log; got %q", c.Email.Provider)
	}
	if c.Email.Provider == "smtp" && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_PROVIDER=smtp")
	}
	return nil
}

// ValidateServer checks what only the webhook service needs.
func (c *Config) ValidateServer() error {
	if c.GitHub.AppID == 0 {
		return fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if c.GitHub.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	return nil
}

// Validate checks the AI provider settings.
func (c *AIConfig) Validate() error {
	if !validProviders[c.LLMProvider] {
		return fmt.Errorf("LLM_PROVIDER must be gemini or ollama; got %q", c.LLMProvider)
	}
	if c.LLMProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set for the gemini provider")
	}
	if c.MaxDiffChars <= 0 {
		return fmt.Errorf("LLM_MAX_DIFF_CHARS must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("LLM_RATE_LIMIT_PER_MINUTE cannot be negative")
	}
	return nil
}

// Validate checks processor tuning values.
func (c *ProcessorConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("PROCESSOR_POLL_INTERVAL must be positive")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("PROCESSOR_MAX_CONCURRENT must be at least 1")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("PROCESSOR_JOB_TIMEOUT must be positive")
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("PROCESSOR_RETRY_MAX_DELAY must be >= PROCESSOR_RETRY_BASE_DELAY > 0")
	}
	if c.CompletedRetention < 1 {
		return fmt.Errorf("PROCESSOR_COMPLETED_RETENTION_DAYS must be at least 1")
	}
	if c.StaleJobTimeout != 0 && c.StaleJobTimeout < c.JobTimeout {
		return fmt.Errorf("PROCESSOR_STALE_JOB_TIMEOUT must not be shorter than PROCESSOR_JOB_TIMEOUT")
	}
	return nil
}
