package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/rentroll/internal/activity"
	"github.com/matthewbaird/rentroll/internal/backend"
	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/config"
	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/eventbus"
	"github.com/matthewbaird/rentroll/internal/handler"
	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/report"
	"github.com/matthewbaird/rentroll/internal/server"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	policy, err := cfg.Resolve()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	st := store.NewSQLiteStore(db)
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	activityStore := activity.NewSQLiteStore(db)
	if err := activityStore.CreateTable(ctx); err != nil {
		return err
	}
	logger.Info("database migrated", "dsn", cfg.DBDSN)

	var scheduleCache *cache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, caching disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			scheduleCache = cache.New(rdb, cfg.CacheTTL)
		}
	}

	bus := eventbus.New(cfg.EventBuffer, logger)
	fanout := eventbus.NewFanout(32, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	// cache runs ahead of stream so clients refetch after the bump.
	if scheduleCache != nil {
		bus.Subscribe("cache", eventbus.NewCacheInvalidator(scheduleCache))
	}
	bus.Subscribe("stream", fanout)
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(activityStore)
	recorder.SetPublisher(bus)

	// History lookups go to the backend when one is configured, since the
	// local copy may trail it by one sync interval.
	var properties occupancy.PropertyFetcher = st
	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout)
	if client.IsConfigured() {
		properties = client
		rentSync := worker.NewRentSync(client, st, recorder, logger)
		if scheduleCache != nil {
			rentSync.SetInvalidator(scheduleCache)
		}
		sched := worker.NewScheduler(
			rentSync,
			cfg.SyncSchedule, policy.Location, cfg.BackendTimeout, logger,
		)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	deps := handler.Deps{
		Store:    st,
		Recorder: recorder,
		Cache:    scheduleCache,
		Classifier: occupancy.NewClassifier(occupancy.Config{
			Properties: properties,
			Policy:     policy.Schedule,
			Selection:  policy.Selection,
			Location:   policy.Location,
			Logger:     logger,
		}),
		Policy:   policy.Schedule,
		Location: policy.Location,
		Logger:   logger,
	}
	srvCfg := server.Config{
		Addr:           cfg.AppAddr,
		ReadTimeout:    cfg.AppReadTimeout,
		WriteTimeout:   cfg.AppWriteTimeout,
		RequestTimeout: cfg.AppRequestTimeout,
		Production:     cfg.IsProduction(),
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
		Logger:         logger,
	}
	router := server.NewRouter(srvCfg, server.Deps{
		Handler:  deps,
		Activity: activityStore,
		Reporter: report.NewReporter(st, policy.Schedule, policy.Location, logger),
		Fanout:   fanout,
	})
	return server.Run(ctx, srvCfg, router)
}
