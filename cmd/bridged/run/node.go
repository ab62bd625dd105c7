// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/log"
	"github.com/luxfi/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bridge/api/bridge"
	"github.com/luxfi/bridge/api/health"
	"github.com/luxfi/bridge/api/server"
	"github.com/luxfi/bridge/config"
	"github.com/luxfi/bridge/coordinator"
	"github.com/luxfi/bridge/events"
	"github.com/luxfi/bridge/events/rabbitmq"
	"github.com/luxfi/bridge/ledger"
	"github.com/luxfi/bridge/metrics"
	"github.com/luxfi/bridge/ratelimit"
)

const pingTimeout = 5 * time.Second

var (
	ledgerPrefix = []byte("ledger")
	bridgePrefix = []byte("bridge")
	nodePrefix   = []byte("node")

	genesisKey = []byte("genesis")
)

// Run serves the bridge until [ctx] is cancelled or the HTTP server fails.
func Run(ctx context.Context, logger log.Logger, cfg config.Config) error {
	db, err := openDB(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", log.Err(err))
		}
	}()

	registry := prometheus.NewRegistry()
	if err := errors.Join(
		registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		registry.Register(collectors.NewGoCollector()),
	); err != nil {
		return err
	}
	bridgeMetrics, err := metrics.New(registry)
	if err != nil {
		return err
	}

	healthChecks, err := health.New(logger, version.Current.String(), cfg.HealthTimeout, registry)
	if err != nil {
		return err
	}

	ledgerState := ledger.New(prefixdb.New(ledgerPrefix, db), logger)
	if err := allocate(ctx, prefixdb.New(nodePrefix, db), ledgerState, cfg.Allocations, logger); err != nil {
		return err
	}

	deps := coordinator.Dependencies{
		DB:        prefixdb.New(bridgePrefix, db),
		Ledger:    ledgerState,
		Log:       logger,
		Metrics:   bridgeMetrics,
		CacheSize: cfg.CacheSize,
	}

	if cfg.RedisURL != "" {
		client, err := dialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		deps.RateStore = ratelimit.NewRedisStore(client, cfg.RedisPrefix, ratelimit.DefaultRetention)
		if err := healthChecks.Register("redis", health.CheckerFunc(func(ctx context.Context) (interface{}, error) {
			return nil, client.Ping(ctx).Err()
		})); err != nil {
			return err
		}
		logger.Info("rate limit counters kept in redis",
			log.String("prefix", cfg.RedisPrefix),
		)
	}

	if cfg.AMQPURL != "" {
		producer, err := rabbitmq.New(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("failed to close event producer", log.Err(err))
			}
		}()

		deps.Publisher = producer
		if err := healthChecks.Register("broker", producer); err != nil {
			return err
		}
		logger.Info("publishing transfer events",
			log.String("exchange", cfg.AMQPExchange),
		)
	} else {
		deps.Publisher = events.NoOp{}
	}

	c, err := coordinator.New(cfg.Coordinator, deps)
	if err != nil {
		return err
	}
	if err := healthChecks.Register("bridge", c); err != nil {
		return err
	}

	var auth *bridge.Authenticator
	if cfg.JWTSecret != "" {
		auth, err = bridge.NewAuthenticator([]byte(cfg.JWTSecret))
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no token secret configured, operations that need a caller are disabled")
	}
	bridgeHandler, err := bridge.NewHandler(logger, c, auth, registry)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddress(), err)
	}
	srv, err := server.New(logger, listener, cfg.HTTP, registry)
	if err != nil {
		_ = listener.Close()
		return err
	}
	if err := errors.Join(
		srv.AddRoute(bridgeHandler, bridge.ServiceName),
		srv.AddRoute(healthChecks.Handler(), "health"),
		srv.AddRoute(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), "metrics"),
	); err != nil {
		_ = listener.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Dispatch)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP API server")
		return srv.Shutdown()
	})
	return g.Wait()
}

func openDB(dir string, logger log.Logger) (database.Database, error) {
	if dir == "" {
		logger.Warn("no data directory configured, state is kept in memory")
		return memdb.New(), nil
	}
	db, err := badgerdb.New(
		dir,
		nil, // configBytes - use default
		"",  // namespace
		nil, // metrics
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dir, err)
	}
	logger.Info("opened database",
		log.String("dir", dir),
	)
	return db, nil
}

func dialRedis(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

// allocate mints the genesis balances once per database.
func allocate(
	ctx context.Context,
	db database.Database,
	l ledger.Ledger,
	allocations []config.Allocation,
	logger log.Logger,
) error {
	applied, err := db.Has(genesisKey)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, allocation := range allocations {
		if err := l.Mint(ctx, allocation.Address, allocation.Balance, "genesis"); err != nil {
			return fmt.Errorf("failed to allocate %d to %s: %w", allocation.Balance, allocation.Address, err)
		}
		logger.Info("allocated genesis balance",
			log.Stringer("address", allocation.Address),
			log.Uint64("balance", allocation.Balance),
		)
	}
	return db.Put(genesisKey, []byte{1})
}
