package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expensetracker/apiserver/config"
	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/db"
	"github.com/expensetracker/apiserver/internal/mq"
	"github.com/expensetracker/apiserver/internal/ratelimit"
	"github.com/expensetracker/apiserver/internal/services"
	"github.com/expensetracker/apiserver/internal/storage"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/internal/store/gormstore"
	"github.com/expensetracker/apiserver/internal/store/hosted"
)

const rateLimitPrefix = "expensetracker:ratelimit"

// Services holds the use-case layer and the resources behind it.
type Services struct {
	Auth     *services.AuthService
	Expenses *services.ExpenseService
	Reports  *services.ReportService
	Events   *mq.Events
	Limiter  ratelimit.Limiter

	closers []func() error
}

// NewServices opens every configured backend. Any unreachable store is an
// error so the process can fail fast.
func NewServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *Services, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Services{}
	defer func() {
		if err != nil {
			_ = svc.Close()
		}
	}()

	users, expenses, err := svc.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := NewEventsBackend(ctx, cfg.Events, logger)
	if err != nil {
		return nil, err
	}
	svc.Events = mq.NewEvents(backend, cfg.Events.Channel, logger)
	svc.closers = append(svc.closers, svc.Events.Close)

	archive, err := svc.openArchive(ctx, cfg.Reports, logger)
	if err != nil {
		return nil, err
	}

	limiter, err := svc.openLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	svc.Limiter = limiter

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	svc.Auth = services.NewAuthService(users, tokens, cfg.Auth.BcryptCost, svc.Events)
	svc.Expenses = services.NewExpenseService(expenses, svc.Events)
	svc.Reports = services.NewReportService(svc.Expenses, archive, logger)
	return svc, nil
}

// Close releases every backend in reverse order of opening.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Services) openRepositories(ctx context.Context, cfg config.Config) (services.UserRepository, services.ExpenseRepository, error) {
	switch cfg.Store.Backend {
	case config.StoreHosted:
		client, err := hosted.NewClient(cfg.Store.HostedURL, cfg.Store.HostedKey, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return hosted.NewUserRepository(client), hosted.NewExpenseRepository(client), nil

	case config.StoreSQL, config.StoreGorm:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, conn.Close)

		if cfg.Store.Backend == config.StoreSQL {
			return store.NewUserRepository(conn), store.NewExpenseRepository(conn), nil
		}
		gdb, err := gormstore.Open(conn, cfg.Database.Dialect)
		if err != nil {
			return nil, nil, err
		}
		return gormstore.NewUserRepository(gdb), gormstore.NewExpenseRepository(gdb), nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewEventsBackend connects to the configured broker.
func NewEventsBackend(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (mq.Backend, error) {
	switch cfg.Backend {
	case "", "log":
		return mq.NewLogBackend(logger), nil
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// openArchive returns a nil interface when reports are not archived.
func (s *Services) openArchive(ctx context.Context, cfg config.ReportsConfig, logger *slog.Logger) (services.ReportArchive, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown reports backend %q", cfg.Backend)
	}

	archive := storage.NewReportArchive(backend)
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", archive.Bucket(), err)
	}
	logger.Info("report archive ready", "backend", cfg.Backend, "bucket", archive.Bucket())
	return archive, nil
}

func (s *Services) openLimiter(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Limiter, error) {
	switch cfg.Backend {
	case "off":
		return ratelimit.Unlimited{}, nil
	case "", "memory":
		return ratelimit.NewMemory(cfg.RequestsPerMinute, cfg.Burst), nil
	case "redis":
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		return ratelimit.NewRedis(client, rateLimitPrefix, cfg.RequestsPerMinute), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
