package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"api-aggregator/internal/aggregator"
	"api-aggregator/internal/alerting"
	"api-aggregator/internal/cache"
	"api-aggregator/internal/config"
	"api-aggregator/internal/httpapi"
	"api-aggregator/internal/monitor"
	"api-aggregator/internal/provider"
	"api-aggregator/internal/stats"
	"api-aggregator/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newCache picks Redis when an address is configured, the in-process cache
// otherwise.
func (a *App) newCache(ctx context.Context) (cache.Cache, func(), error) {
	if a.Config.Cache.RedisAddr == "" {
		a.Logger.Debug().Msg("cache.redis_addr not configured; using in-memory cache")
		return cache.NewMemory(), func() {}, nil
	}

	redis, err := cache.NewRedis(ctx, a.Config.Cache)
	if err != nil {
		return nil, nil, err
	}
	return redis, func() { _ = redis.Close() }, nil
}

func (a *App) newProviders(store cache.Cache) []provider.Provider {
	cfg := a.Config.Providers
	return []provider.Provider{
		provider.NewWeather(cfg.Weather, store, a.Logger),
		provider.NewNews(cfg.News, store, a.Logger),
		provider.NewBooks(cfg.Books, store, a.Logger),
		provider.NewPrompt(cfg.Prompt, a.Logger),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

// Run executes the long-running service: the HTTP surface plus the anomaly
// monitor, sharing one statistics collector.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cacheStore, closeCache, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; anomaly persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	collector := stats.NewCollector()
	orchestrator := aggregator.New(a.newProviders(cacheStore), collector, a.Logger)

	var anomalyStore monitor.AnomalyStore
	if store != nil {
		anomalyStore = store
	}
	mon := monitor.New(a.Config.Monitor, collector, a.newNotifier(), anomalyStore, a.Logger)
	server := httpapi.NewServer(a.Config.Server, a.Config.Monitor, orchestrator, collector, a.Logger)

	a.Logger.Info().Msg("starting aggregation service")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return mon.Run(groupCtx) })
	group.Go(func() error { return server.Run(groupCtx) })

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("aggregation service stopped")
	return nil
}
