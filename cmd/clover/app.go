package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/auditlog"
	"github.com/Ramsey-B/clover/internal/repositories/invoice"
	"github.com/Ramsey-B/clover/internal/repositories/matchresult"
	"github.com/Ramsey-B/clover/internal/repositories/payment"
	"github.com/Ramsey-B/clover/internal/repositories/registration"
	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/fields"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/invoicing"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/review"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	zap    *zap.Logger

	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer

	review  *review.Service
	batch   *batch.Orchestrator
	checker *health.Checker

	shutdownTracing func(context.Context) error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}
	return config.Load(files...)
}

// newBase sets up logging and the database only.
func newBase(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, zapLogger, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, zap: zapLogger}

	db, err := database.Connect(ctx, cfg.DatabaseConfig(), logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger := a.logger

	shutdownTracing, err := tracing.Init(ctx, cfg.TracingConfig())
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdownTracing

	a.checker = health.NewChecker(cfg.Version)
	a.checker.Require("database", health.PingFunc(a.db.PingContext))

	var locker batch.Locker
	if redisCfg := cfg.RedisConfig(); redisCfg.Enabled() {
		client, err := redis.NewClient(ctx, redisCfg, logger)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.checker.Optional("redis", client)
		locker = redis.NewLocker(client, "")
	} else {
		logger.Warn("Redis disabled, concurrent batches are not excluded across instances")
	}

	var publisher events.Publisher
	if cfg.KafkaEnabled() {
		a.producer = kafka.NewProducer(cfg.ProducerConfig(), logger)
		publisher = a.producer
	} else {
		logger.Info("Kafka disabled, events will not be published")
	}
	emitter := events.NewEmitter(publisher, logger)

	adapter := canonical.NewAdapter()
	registry := fields.DefaultRegistry()

	payments := payment.NewRepository(a.db, logger)
	registrations := registration.NewRepository(a.db, adapter, registry, logger)
	matches := matchresult.NewRepository(a.db, logger)
	audit := auditlog.NewRepository(a.db, logger)
	invoices := invoice.NewRepository(a.db, logger)

	scorer := matching.NewScorer(registry)
	selector := matching.NewSelector(
		matching.NewRecall(registrations, registry),
		scorer,
		logger,
		matching.WithWorkers(cfg.Match.Workers),
	)

	a.review = review.NewService(review.Dependencies{
		Matches:       matches,
		Audit:         audit,
		Payments:      payments,
		Registrations: registrations,
		Adapter:       adapter,
		Scorer:        scorer,
		Issuer:        invoicing.NewIssuer(invoices, logger),
		WithTx:        review.TxFor(a.db),
		Events:        emitter,
		Logger:        logger,
	})

	a.batch = batch.NewOrchestrator(batch.Dependencies{
		Payments: payments,
		Results:  matches,
		Adapter:  adapter,
		Matcher:  selector,
		Locker:   locker,
		Events:   emitter,
		Logger:   logger,
	}, cfg.BatchConfig())

	return a, nil
}

// migrate applies pending schema migrations.
func (a *app) migrate() error {
	return a.migrateWith(a.cfg.MigrationConfig())
}

func (a *app) migrateWith(migrationCfg *database.MigrationConfig) error {
	service := database.NewMigrationService(a.logger, migrationCfg)
	return service.MigratePostgres(a.db.SQL(), a.cfg.Database.Name)
}

// close releases everything newApp opened, in reverse.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	return errors.Join(errs...)
}
