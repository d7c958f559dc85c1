package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/model"
	"github.com/Mounkaila144/produit-sub000/internal/notify"
	"github.com/Mounkaila144/produit-sub000/internal/repository"
	"github.com/Mounkaila144/produit-sub000/internal/server"
	"github.com/Mounkaila144/produit-sub000/pkg/config"
	"github.com/Mounkaila144/produit-sub000/pkg/database"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tenantStore is satisfied by both the postgres and the memory store
type tenantStore interface {
	lifecycle.Store
	server.Store
}

// app holds the components shared by every command
type app struct {
	conf    *config.Config
	log     *zap.Logger
	clock   clock.Clock
	store   tenantStore
	service *lifecycle.Service

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	conf, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &app{conf: conf, log: logger.GetLogger(), clock: clock.New()}
	a.log.Info("Configuration loaded", conf.LogConfig()...)
	prometheus.SetServiceInfo(version)

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	coord, err := a.coordinator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = lifecycle.NewService(a.store, a.notifier(), coord, a.clock, lifecycle.Options{
		DefaultTerm:      conf.Tenancy.DefaultTerm,
		RenewalYears:     conf.Tenancy.RenewalYears,
		PasswordMinChars: conf.Tenancy.PasswordMinChars,
		Location:         conf.Scheduler.Location(),
		LockTTL:          conf.Scheduler.LockTTL,
	}, logger.Named("lifecycle"))
	return a, nil
}

func (a *app) openStore() error {
	if a.conf.Store.Driver == "memory" {
		a.log.Warn("Using in-memory tenant store, data is lost on exit")
		a.store = repository.NewMemoryStore()
		return nil
	}

	db, err := database.InitDB(&a.conf.DB, a.log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	a.store = repository.NewPostgresStore(db)
	return nil
}

func (a *app) migrate() error {
	pg, ok := a.store.(*repository.PostgresStore)
	if !ok {
		a.log.Info("Memory store needs no migration")
		return nil
	}
	if err := pg.Migrate(); err != nil {
		return err
	}
	a.log.Info("Migrations applied", zap.Strings("models", []string{model.Tenant{}.TableName(), model.User{}.TableName()}))
	return nil
}

func (a *app) coordinator(ctx context.Context) (lifecycle.Coordinator, error) {
	if a.conf.Redis.Addr == "" {
		return lifecycle.NewLocalCoordinator(a.clock), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.conf.Redis.Addr,
		Password: a.conf.Redis.Password,
		DB:       a.conf.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.conf.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info("Sweep coordination through redis", zap.String("addr", a.conf.Redis.Addr))
	return lifecycle.NewRedisCoordinator(client, a.conf.Redis.KeyPrefix), nil
}

func (a *app) notifier() *notify.Channel {
	nc := a.conf.Notifier
	log := logger.Named("notify")

	var sender notify.Sender = notify.NewLogSender(log)
	if nc.Driver == "sms" {
		sender = notify.NewSMSSender(notify.SMSConfig{
			GatewayURL: nc.GatewayURL,
			APIKey:     nc.APIKey,
			Sender:     nc.Sender,
			Timeout:    nc.Timeout,
			RetryCount: nc.RetryCount,
		}, log)
	}

	var limiter *rate.Limiter
	if nc.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(nc.RatePerSecond), nc.Burst)
	}
	return notify.NewChannel(sender, limiter, log)
}

// Close releases the database and redis connections
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	_ = a.log.Sync()
	return err
}
