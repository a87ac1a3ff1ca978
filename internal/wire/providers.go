package wire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/commit-digest/internal/app"
	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/db"
	"github.com/sevigo/commit-digest/internal/email"
	"github.com/sevigo/commit-digest/internal/github"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/llm"
	"github.com/sevigo/commit-digest/internal/logger"
	"github.com/sevigo/commit-digest/internal/ratelimit"
	"github.com/sevigo/commit-digest/internal/server"
	"github.com/sevigo/commit-digest/internal/storage"
	"github.com/sevigo/commit-digest/internal/telemetry"
)

// StoreSet builds the database-backed stores.
var StoreSet = wire.NewSet(
	provideDBConfig,
	db.NewDatabase,
	provideSQLX,
	provideJobStore,
	storage.NewCommitStore,
	storage.NewProjectStore,
	storage.NewEmailTracker,
	storage.NewBillingLedger,
	provideBillingLedger,
)

// AppSet is the full dependency graph of the webhook service.
var AppSet = wire.NewSet(
	StoreSet,
	app.NewApp,
	server.NewServer,
	provideConfig,
	llm.NewPromptManager,
	jobs.NewComposer,
	jobs.NewIngestor,
	jobs.NewFetchDiffHandler,
	jobs.NewGenerateSummaryHandler,
	jobs.NewWebhookProcessingHandler,
	provideSendEmailHandler,
	provideProcessor,
	provideServerDependencies,
	provideMetrics,
	provideTokenProvider,
	provideDiffProvider,
	provideGeneratorLLM,
	provideRedisClient,
	provideLimiter,
	provideSummarizer,
	provideEmailConfig,
	email.NewSender,
	provideRenderer,
	provideLoggerConfig,
	provideLogWriter,
	provideSlogLogger,
)

// provideConfig loads the configuration and checks the server-only settings.
func provideConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideSQLX(conn *db.DB) *sqlx.DB {
	return conn.DB
}

func provideBillingLedger(ledger storage.BillingLedger) core.BillingLedger {
	return ledger
}

func provideJobStore(conn *sqlx.DB, cfg *config.Config) storage.JobStore {
	return storage.NewJobStore(conn,
		storage.WithRetryBackoff(cfg.Processor.RetryBaseDelay, cfg.Processor.RetryMaxDelay),
		storage.WithWriteRetries(cfg.Processor.LifecycleWriteRetries, 200*time.Millisecond),
	)
}

func provideTokenProvider(cfg *config.Config, logger *slog.Logger) (core.TokenProvider, error) {
	return github.NewTokenProviderFromConfig(&cfg.GitHub, logger)
}

func provideDiffProvider(cfg *config.Config, logger *slog.Logger) (core.DiffProvider, error) {
	return github.NewDiffProvider(cfg.GitHub.APIBaseURL, logger)
}

func provideGeneratorLLM(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	switch cfg.AI.LLMProvider {
	case "gemini":
		if cfg.AI.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return gemini.New(ctx, gemini.WithModel(cfg.AI.GeneratorModel), gemini.WithAPIKey(cfg.AI.GeminiAPIKey))
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(newOllamaHTTPClient()),
			ollama.WithModel(cfg.AI.GeneratorModel),
			ollama.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.AI.LLMProvider)
	}
}

func newOllamaHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}
}

// provideRedisClient returns nil when no Redis is configured.
func provideRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}, nil
}

func provideLimiter(cfg *config.Config, client *redis.Client) llm.Limiter {
	if client == nil || cfg.AI.RateLimitPerMinute == 0 {
		return nil
	}
	return ratelimit.NewPerMinute(client, ratelimit.SummaryKey, cfg.AI.RateLimitPerMinute)
}

func provideSummarizer(cfg *config.Config, model llms.Model, prompts *llm.PromptManager,
	limiter llm.Limiter, logger *slog.Logger) core.Summarizer {
	variant := cfg.AI.PromptTemplate
	if variant == "" {
		variant = cfg.AI.LLMProvider
	}
	opts := []llm.Option{
		llm.WithModel(model),
		llm.WithProvider(llm.ModelProvider(variant)),
		llm.WithMaxDiffChars(cfg.AI.MaxDiffChars),
		llm.WithRequestTimeout(cfg.AI.RequestTimeout),
	}
	if limiter != nil {
		opts = append(opts, llm.WithLimiter(limiter))
	}
	return llm.NewSummarizer(llm.ModelGenerator(model), prompts, logger, opts...)
}

func provideEmailConfig(cfg *config.Config) *config.EmailConfig {
	return &cfg.Email
}

func provideRenderer(cfg *config.Config) (*email.Renderer, error) {
	return email.NewRenderer(cfg.Email.DashboardURL)
}

func provideSendEmailHandler(cfg *config.Config, commits core.CommitStore, projects core.ProjectStore,
	sender core.EmailSender, tracker core.EmailTracker, renderer *email.Renderer, logger *slog.Logger) *jobs.SendEmailHandler {
	return jobs.NewSendEmailHandler(commits, projects, sender, tracker, renderer, cfg.Email.From, logger)
}

func provideMetrics() *telemetry.Metrics {
	return telemetry.New(prometheus.DefaultRegisterer)
}

// ProcessorOptions maps the processor config section onto processor options.
func ProcessorOptions(cfg config.ProcessorConfig) jobs.Options {
	return jobs.Options{
		PollInterval:        cfg.PollInterval,
		MaxConcurrent:       cfg.MaxConcurrent,
		JobTimeout:          cfg.JobTimeout,
		RetryBaseDelay:      cfg.RetryBaseDelay,
		RetryMaxDelay:       cfg.RetryMaxDelay,
		MaintenanceInterval: cfg.MaintenanceInterval,
		RetentionDays:       cfg.CompletedRetention,
		StaleJobTimeout:     cfg.StaleJobTimeout,
		ShutdownTimeout:     cfg.ShutdownTimeout,
	}
}

func provideProcessor(cfg *config.Config, store storage.JobStore, metrics *telemetry.Metrics, logger *slog.Logger,
	webhook *jobs.WebhookProcessingHandler, fetch *jobs.FetchDiffHandler,
	summary *jobs.GenerateSummaryHandler, send *jobs.SendEmailHandler) *jobs.Processor {
	p := jobs.NewProcessor(store, logger,
		jobs.WithOptions(ProcessorOptions(cfg.Processor)),
		jobs.WithMetrics(metrics),
	)
	p.RegisterHandler(webhook)
	p.RegisterHandler(fetch)
	p.RegisterHandler(summary)
	p.RegisterHandler(send)
	return p
}

func provideServerDependencies(ingestor *jobs.Ingestor, composer *jobs.Composer, store storage.JobStore,
	processor *jobs.Processor, metrics *telemetry.Metrics) server.Dependencies {
	return server.Dependencies{
		Ingestor:  ingestor,
		Enqueuer:  composer,
		Jobs:      store,
		Processor: processor,
		Metrics:   metrics,
	}
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stderr":
		return os.Stderr
	case "file":
		path := cfg.Logging.File
		if path == "" {
			path = "commit-digest.log"
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return os.Stderr
		}
		return f
	default:
		return os.Stdout
	}
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	l := logger.NewLogger(loggerConfig, writer)
	slog.SetDefault(l)
	return l
}
