package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/delivery"
	"github.com/maraichr/reviewgate/internal/license"
	"github.com/maraichr/reviewgate/internal/platform/enabled"
	"github.com/maraichr/reviewgate/internal/queue"
	"github.com/maraichr/reviewgate/internal/review"
	"github.com/maraichr/reviewgate/internal/store"
	"github.com/maraichr/reviewgate/internal/store/postgres"
	vk "github.com/maraichr/reviewgate/internal/store/valkey"
	"github.com/maraichr/reviewgate/internal/suggest"
	"github.com/maraichr/reviewgate/internal/webhook"
	"github.com/maraichr/reviewgate/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	s := store.New(pool)

	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	registry, err := enabled.Registry(cfg, logger)
	if err != nil {
		logger.Error("failed to build platform registry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clients := review.FromRegistry(registry)

	runner := review.NewRunner(review.Deps{
		Configs:               s,
		Licenses:              license.NewService(s, logger),
		Clients:               clients,
		Generator:             suggest.NewClient(cfg.Suggest.APIKey, cfg.Suggest.BaseURL, cfg.Suggest.Timeout),
		Persister:             s,
		DefaultMaxSuggestions: cfg.Review.DefaultMaxSuggestions,
		PipelineTimeout:       cfg.Review.PipelineTimeout,
		DeliveryOptions: []delivery.Option{
			delivery.WithRetryDelay(cfg.Review.TransientRetryDelay),
			delivery.WithCallTimeout(cfg.Review.CallTimeout),
		},
		Logger: logger,
	})

	var handlers []webhook.Handler
	for _, a := range registry.All() {
		handlers = append(handlers, webhook.NewPlatformHandler(a.Platform(), webhook.HandlerDeps{
			Tenants:     s,
			Snapshots:   s,
			Runner:      runner,
			Clients:     clients,
			BotMention:  cfg.Review.BotMention,
			BotUsername: enabled.BotUsername(cfg, a.Platform()),
			Logger:      logger,
		}))
	}
	dispatcher := webhook.NewDispatcher(webhook.NewValkeyDedupStore(vkClient), cfg.Review.DedupTTL, logger, handlers...)

	parsers := func(p models.Platform) (webhook.Parser, bool) {
		a, ok := registry.Get(p)
		return a, ok
	}
	handle := webhook.NewMessageHandler(parsers, dispatcher, logger)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		consumer := queue.NewConsumer(vkClient, fmt.Sprintf("%s-%d", cfg.Worker.ConsumerID, i), logger)
		if i == 0 {
			if err := consumer.EnsureGroup(ctx); err != nil {
				logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, handle); err != nil && ctx.Err() == nil {
				logger.Error("consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("worker started",
		slog.String("stream", queue.StreamName),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Int("platforms", len(registry.All())))

	wg.Wait()
	logger.Info("worker stopped")
}
