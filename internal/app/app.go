package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/frontline-backend/internal/data/db"
	"github.com/yungbote/frontline-backend/internal/data/repos"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
	"github.com/yungbote/frontline-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdown := observability.InitOTel(ctx, log, observability.LoadOtelConfig(cfg.ServiceName, cfg.Environment))
	observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()

	reposet := repos.NewSet(theDB, log)

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: shutdown,
	}, nil
}

func (a *App) Migrate() error {
	if err := a.pg.AutoMigrateAll(); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// StartBackground runs what every long-lived process needs: the source registrar and the
// metrics collectors.
func (a *App) StartBackground(ctx context.Context) error {
	if err := a.Services.Registrar.Start(ctx); err != nil {
		return fmt.Errorf("start source registrar: %w", err)
	}
	if m := observability.Current(); m != nil {
		m.StartPostgresCollector(ctx, a.Log, a.DB)
		m.StartTaskQueueCollector(ctx, a.Log, a.DB)
		if a.Clients.Redis != nil {
			m.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
		m.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
	return nil
}

// RunWorker executes ingestion tasks until ctx ends. With Temporal configured the tasks are
// driven by workflows unless poll is set, which uses the database queue directly.
func (a *App) RunWorker(ctx context.Context, poll bool) error {
	if a.Clients.Temporal != nil && !poll {
		runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Cfg.Temporal, a.Repos.IngestTask, a.Services.Worker)
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return err
		}
	} else {
		a.Services.Worker.Start(ctx)
	}
	<-ctx.Done()
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
