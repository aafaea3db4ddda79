// Package bootstrap turns configuration into the clients and components
// shared by the API and worker services.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/cuongbtq/hotel-scout/internal/cache"
	"github.com/cuongbtq/hotel-scout/internal/config"
	"github.com/cuongbtq/hotel-scout/internal/connector"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/metrics"
	"github.com/cuongbtq/hotel-scout/internal/store"
	"github.com/cuongbtq/hotel-scout/shared/logger"
	"github.com/cuongbtq/hotel-scout/shared/postgresql"
	"github.com/cuongbtq/hotel-scout/shared/rabbitmq"
)

// Closer releases a resource at shutdown
type Closer func() error

// Logger builds the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// PostgresConfig maps the database section onto the client config
func PostgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
	}
}

// Store opens the configured job store. With the postgres driver it connects,
// optionally migrates, and exports pool stats to reg when reg is non-nil.
// The returned health check backs the /health endpoint.
func Store(ctx context.Context, cfg *config.DatabaseConfig, reg *prometheus.Registry, logger *slog.Logger) (store.Store, func(context.Context) error, Closer, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store; data is lost on exit and not shared between processes")
		s := store.NewMemory()
		return s, s.Ping, func() error { return nil }, nil
	}

	pgConfig := PostgresConfig(cfg)

	if cfg.AutoMigrate {
		logger.Info("Running database migrations", slog.String("dir", cfg.MigrationsDir))
		if err := store.RunMigrations(pgConfig.URL(), cfg.MigrationsDir); err != nil {
			return nil, nil, nil, err
		}
	}

	client, err := postgresql.NewClient(ctx, pgConfig, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	if reg != nil {
		if err := reg.Register(collectors.NewDBStatsCollector(client.GetDB().DB, cfg.Database)); err != nil {
			logger.Warn("Failed to register database stats collector", slog.Any("error", err))
		}
	}

	return store.NewPostgres(client.GetDB(), logger), client.HealthCheck, client.Close, nil
}

// RabbitMQConfig maps the rabbitmq section onto the client config
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

// StatusCache connects to Redis when enabled. A cache that cannot be reached
// at startup is logged and replaced by a no-op; the store stays authoritative.
func StatusCache(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (cache.StatusCache, Closer) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return cache.Nop{}, noop
	}

	rc, err := cache.NewRedisCache(cfg.URL, cfg.StatusTTL)
	if err != nil {
		logger.Error("Invalid redis configuration, status cache disabled", slog.Any("error", err))
		return cache.Nop{}, noop
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Redis unreachable, status cache disabled", slog.Any("error", err))
		rc.Close()
		return cache.Nop{}, noop
	}

	logger.Info("Status cache connected", slog.Duration("ttl", cfg.StatusTTL))
	return rc, rc.Close
}

// Metrics creates a registry with the pipeline collectors plus the Go runtime
// and process collectors. It returns nil metrics when disabled.
func Metrics(cfg *config.MetricsConfig) (*metrics.Metrics, *prometheus.Registry) {
	if !cfg.Enabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), reg
}

// Connectors builds both source connectors. Launches share one token bucket
// across sources; each source gets its own circuit breaker.
func Connectors(cfg *config.ConnectorsConfig, logger *slog.Logger) (a, b connector.Connector, err error) {
	var limiter *rate.Limiter
	if cfg.LaunchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), max(cfg.LaunchBurst, 1))
	}

	build := func(source domain.Source, cmd config.CommandConfig) (connector.Connector, error) {
		sp, err := connector.NewSubprocess(connector.SubprocessConfig{
			Source:  source,
			Command: cmd.Command,
			Args:    cmd.Args,
			Dir:     cmd.Dir,
			Env:     cmd.Env,
			Limiter: limiter,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Breaker.FailureThreshold == 0 {
			return sp, nil
		}
		return connector.WithBreaker(sp, connector.BreakerSettings{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
		}, logger), nil
	}

	if a, err = build(domain.SourceA, cfg.SourceA); err != nil {
		return nil, nil, fmt.Errorf("source a connector: %w", err)
	}
	if b, err = build(domain.SourceB, cfg.SourceB); err != nil {
		return nil, nil, fmt.Errorf("source b connector: %w", err)
	}
	return a, b, nil
}
