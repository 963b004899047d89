package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dmakarovsky/practice-ai-assistant/internal/analytics"
	"github.com/dmakarovsky/practice-ai-assistant/internal/api/router"
	appconfig "github.com/dmakarovsky/practice-ai-assistant/internal/config"
	"github.com/dmakarovsky/practice-ai-assistant/internal/conversation"
	"github.com/dmakarovsky/practice-ai-assistant/internal/observability/metrics"
	"github.com/dmakarovsky/practice-ai-assistant/internal/telegram"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

func main() {
	// Load configuration
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting practice-ai-assistant bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	conversationMetrics := metrics.NewConversationMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	// Session store and idle-session sweeper
	store := conversation.NewStore(cfg.HistoryLimit, cfg.SessionTTL)
	sweeper := conversation.NewSweeper(store, cfg.SessionSweepInterval, logger)
	sweeper.Start(rootCtx)
	defer sweeper.Stop()

	// Generative backend: OpenAI primary, Gemini fallback when configured
	var llm conversation.LLMClient = conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITimeout)
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(rootCtx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to initialize gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		llm = conversation.NewFallbackLLMClient(llm, gemini, logger)
		logger.Info("gemini fallback enabled", "model", cfg.GeminiModel)
	}

	// Analytics sink: Postgres when DATABASE_URL is set, webhook next, noop otherwise
	sink := buildAnalyticsSink(rootCtx, cfg, logger)

	policy := conversation.NewStagePolicy(cfg.StagePolicy)
	sanitizer := conversation.NewSanitizer(cfg.BannedTopics...)

	service := conversation.NewLLMService(llm, store, policy, sanitizer, cfg.OpenAIModel, logger,
		conversation.WithCompletionTimeout(cfg.OpenAITimeout),
		conversation.WithAnalytics(sink),
		conversation.WithMetrics(conversationMetrics),
	)

	// Queue, publisher and worker pool
	queue := conversation.NewMemoryQueue(256)
	publisher := conversation.NewPublisher(queue, logger)

	sender := telegram.NewSender(cfg.TelegramBotToken, cfg.TelegramAPIBaseURL, logger)
	worker := conversation.NewWorker(service, queue, sender, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithWorkerMetrics(webhookMetrics),
	)
	worker.Start(rootCtx)

	// Webhook dedupe store: Redis when configured, in-process otherwise
	var processed telegram.ProcessedStore = telegram.NewMemoryProcessedStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		processed = telegram.NewRedisProcessedStore(redisClient)
		logger.Info("redis update dedupe enabled", "addr", cfg.RedisAddr)
	}

	telegramHandler := telegram.NewHandler(cfg.TelegramWebhookSecret, publisher, processed, webhookMetrics, logger)
	conversationHandler := conversation.NewHandler(service, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		TelegramHandler:     telegramHandler,
		ConversationHandler: conversationHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop accepting jobs and drain the worker pool
	rootCancel()
	worker.Wait()

	logger.Info("server stopped")
}

func buildAnalyticsSink(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) analytics.Sink {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open analytics database", "error", err)
			os.Exit(1)
		}
		sink := analytics.NewPostgresSink(db)
		if err := sink.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure analytics schema", "error", err)
			os.Exit(1)
		}
		logger.Info("postgres analytics sink enabled")
		return sink
	}
	if cfg.AnalyticsWebhookURL != "" {
		logger.Info("webhook analytics sink enabled")
		return analytics.NewWebhookSink(cfg.AnalyticsWebhookURL, logger)
	}
	return analytics.NoopSink{}
}
