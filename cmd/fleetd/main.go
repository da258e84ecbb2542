// Command fleetd serves the device fleet API: auth, cached device reads,
// device writes with real-time fan-out, health and metrics.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/MrEthical07/goFleet/cache"
	"github.com/MrEthical07/goFleet/device"
	"github.com/MrEthical07/goFleet/httpapi"
	"github.com/MrEthical07/goFleet/internal/appconfig"
	"github.com/MrEthical07/goFleet/internal/logging"
	"github.com/MrEthical07/goFleet/internal/rate"
	"github.com/MrEthical07/goFleet/metrics/export/prometheus"
	"github.com/MrEthical07/goFleet/realtime"
	"github.com/MrEthical07/goFleet/respcache"
	"github.com/MrEthical07/goFleet/storage/memory"
	"github.com/MrEthical07/goFleet/storage/postgres"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appconfig.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fleetd stopped", zap.Error(err))
		os.Exit(1)
	}
}

type stores struct {
	users   goFleet.UserStore
	tokens  tokenstore.Store
	devices device.Store
	db      *sql.DB
}

func run(ctx context.Context, cfg appconfig.Config, logger *zap.Logger) error {
	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	st, err := openStores(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer func() { _ = st.db.Close() }()
	}

	b := goFleet.New().
		WithConfig(cfg.Engine()).
		WithUserStore(st.users).
		WithTokenStore(st.tokens).
		WithLogger(logger)
	if cfg.Audit {
		b = b.WithAuditSink(goFleet.NewZapSink(logger))
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	metrics := engine.Metrics()
	rc := respcache.New(cache.NewRedisStore(rdb, 100), respcache.Config{Prefix: cfg.Cache.Prefix, TTL: cfg.Cache.TTL}, logger, metrics)

	registry := broadcast.NewRegistry(logger, metrics)
	relay := broadcast.NewRedisRelay(rdb, registry, "fleet:events", logger)
	go func() {
		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event relay stopped", zap.Error(err))
		}
	}()

	devices := device.NewService(st.devices, rc, relay, logger)

	health := httpapi.NewHealth(2*time.Second, logger).
		Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	if st.db != nil {
		health.Add("database", st.db.PingContext)
	}

	exporter := prometheus.NewPrometheusExporter(engine).
		WithGauge("gofleet_realtime_connections", "Live real-time connections.", func() float64 {
			return float64(registry.Len())
		})

	handler := httpapi.NewRouter(httpapi.Deps{
		Auth:     engine,
		Devices:  devices,
		Cache:    rc,
		Realtime: realtime.NewHandler(engine, registry, relay, realtime.Config{}, logger, metrics),
		Limiter:  rate.New(rdb, rate.DefaultPrefix),
		Metrics:  exporter.Handler(),
		Health:   health,
		Security: cfg.Engine().Security,
		Logger:   logger,
	})

	srv := httpapi.NewServer(cfg.Addr(), handler, cfg.HTTP.ReadHeaderTimeout, cfg.HTTP.ShutdownTimeout, logger)
	return srv.Run(ctx)
}

func openRedis(cfg appconfig.RedisConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("REDIS_ADDR not set, using embedded redis", zap.String("addr", addr))
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return rdb, func() {
		_ = rdb.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

func openStores(ctx context.Context, cfg appconfig.Config, rdb redis.UniversalClient, logger *zap.Logger) (stores, error) {
	if cfg.Database.DSN == "" {
		logger.Info("DATABASE_DSN not set, keeping users and devices in memory")
		return stores{
			users:   memory.NewUserStore(),
			tokens:  tokenstore.NewRedisStore(rdb, "fleet:tok", time.Duration(cfg.JWT.RefreshExpirationDays)*24*time.Hour),
			devices: device.NewMemoryStore(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return stores{}, err
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	return stores{
		users:   postgres.NewUserStore(db),
		tokens:  postgres.NewTokenStore(db),
		devices: postgres.NewDeviceStore(db),
		db:      db,
	}, nil
}
