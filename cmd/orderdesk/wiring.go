package main

import (
	"context"
	"fmt"

	"github.com/rpattn/orderdesk/internal/config"
	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/db"
	"github.com/rpattn/orderdesk/internal/dispatch"
	"github.com/rpattn/orderdesk/internal/metrics"
	"github.com/rpattn/orderdesk/internal/notify"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/repository"
	"github.com/rpattn/orderdesk/internal/routing"
	"github.com/rpattn/orderdesk/internal/sheet"

	"go.uber.org/zap"
)

// app holds everything built from one configuration.
type app struct {
	backend    datasource.Backend
	cache      *orders.Cache
	router     *routing.Router
	templates  *notify.Templates
	dispatcher *dispatch.Service
	metrics    *metrics.Registry
	closeFn    func()
}

func (a *app) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (datasource.Backend, func(), error) {
	switch cfg.Source.Kind {
	case config.SourceXLSX, config.SourceCSV:
		store, err := sheet.NewStore(cfg.Source.Path, cfg.Source.Worksheet, cfg.Source.LogColumn, cfg.OrderMapping())
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.SourcePostgres:
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.MigratePostgres(conn.Pool, logger); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return repository.NewOrderRepository(conn.Pool, cfg.Source.Table), conn.Close, nil

	case config.SourceSQLite:
		sqlDB, err := db.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigrateSQLite(sqlDB, logger); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		repo := repository.NewSQLiteOrderRepository(sqlDB, cfg.Source.Table)
		return repo, func() { _ = repo.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	backend, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{backend: backend, closeFn: closeFn, metrics: metrics.NewRegistry()}

	if a.router, err = routing.NewRouter(cfg.Suppliers); err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid supplier rules: %w", err)
	}
	if a.templates, err = notify.NewTemplates(cfg.Templates); err != nil {
		a.Close()
		return nil, err
	}

	var mailer notify.Mailer = notify.Disabled{}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	}
	var chat notify.ChatSender = notify.Disabled{}
	if cfg.Chat.URL != "" {
		chat = notify.NewWebhookChat(cfg.Chat)
	}

	a.cache = orders.NewCache(backend, cfg.OrderMapping(), cfg.Source.CacheTTL, logger, a.metrics)
	a.dispatcher, err = dispatch.NewService(cfg.Dispatch, dispatch.Deps{
		Templates: a.templates,
		Mailer:    mailer,
		Chat:      chat,
		Router:    a.router,
		Logs:      backend,
		Logger:    logger,
		Metrics:   a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
