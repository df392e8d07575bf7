package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/command"
	"assessment-engine/internal/config"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/event"
	"assessment-engine/internal/infra/memory"
	mongostore "assessment-engine/internal/infra/mongo"
	pgstore "assessment-engine/internal/infra/postgres"
	redisstore "assessment-engine/internal/infra/redis"
	"assessment-engine/internal/logger"
	"assessment-engine/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// bankStore is the writable side of a durable bank backend.
type bankStore interface {
	memory.BankLoader
	SaveBank(ctx context.Context, bank domain.Bank) error
}

// backend holds the stores selected by storage.driver.
type backend struct {
	loader      memory.BankLoader
	bankStore   bankStore // nil for the memory driver
	activations app.ActivationStore
	results     app.ResultStore
	closers     []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (*backend, error) {
	b := &backend{}
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		store := pgstore.NewBankStore(pool)
		b.loader, b.bankStore = store, store
		b.activations = pgstore.NewActivationStore(pool)
		b.results = pgstore.NewResultStore(pool)

	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		store := mongostore.NewBankStore(db)
		b.loader, b.bankStore = store, store
		b.activations = mongostore.NewActivationStore(db)
		b.results = mongostore.NewResultStore(db)

	default:
		loader, err := memoryBanks(cfg.Bank.File)
		if err != nil {
			return nil, err
		}
		b.loader = loader
		b.activations = memory.NewActivationStore()
		b.results = memory.NewResultStore()
		log.Warn().Msg("memory storage selected, activations and results are lost on exit")
	}
	return b, nil
}

func memoryBanks(path string) (*memory.StaticBankLoader, error) {
	if path == "" {
		return memory.NewStaticBankLoader(sampleBanks()), nil
	}
	return memory.LoadBankFile(path)
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// service is the fully wired application.
type service struct {
	backend    *backend
	redis      *redis.Client
	cache      *redisstore.BankRepository // nil without redis
	publisher  *event.Publisher
	recorder   *metrics.Recorder
	registry   *app.Registry
	engine     *app.Engine
	reports    *app.Reports
	dispatcher *command.Dispatcher
}

func buildService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*service, error) {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	svc := &service{backend: b, recorder: metrics.NewRecorder()}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)
	leaseTTL := config.TTLDuration(cfg.Session.LeaseTTL, 5*time.Second)

	var (
		banks    app.BankRepository
		sessions app.SessionRepository
		guard    app.StartGuard
	)
	if client := newRedisClient(cfg); client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		svc.redis = client
		svc.cache = redisstore.NewBankRepository(client, b.loader, bankTTL)
		banks = svc.cache
		sessions = redisstore.NewSessionStore(client, sessionTTL)
		guard = redisstore.NewStartGuard(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis enabled for banks, sessions and start leases")
	} else {
		banks = memory.NewBankRepository(b.loader, bankTTL)
		sessions = memory.NewSessionStore()
		guard = app.NewLocalStartGuard()
	}

	svc.publisher, err = event.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	if err != nil {
		svc.Close()
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithPublisher(svc.publisher),
		app.WithObserver(svc.recorder),
		app.WithStartGuard(guard, leaseTTL),
	}
	svc.registry = app.NewRegistry(b.activations, banks, opts...)
	svc.engine = app.NewEngine(svc.registry, banks, b.results, sessions, opts...)
	svc.reports = app.NewReports(b.activations, b.results)
	roles := command.NewStaticRoles(cfg.Roles.Admins, cfg.Roles.Operators)
	svc.dispatcher = command.NewDispatcher(svc.registry, svc.engine, svc.reports, roles, log)
	return svc, nil
}

func (s *service) Close() {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.backend.Close()
}

// loadConfig reads the config and builds the root logger from it.
func loadConfig(path string) (config.Config, zerolog.Logger, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}

// sampleBanks is served by the memory driver when no bank file is configured.
func sampleBanks() map[string]domain.Bank {
	return map[string]domain.Bank{
		"sample": {
			ID: "sample",
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
				{Text: "Which planet is closest to the sun?", Options: []string{"Venus", "Earth", "Mercury", "Mars"}, CorrectOption: 2},
				{Text: "How many minutes are in an hour?", Options: []string{"60", "100", "24"}, CorrectOption: 0},
			},
		},
	}
}
