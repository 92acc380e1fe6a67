package app

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/db"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/http"
	"github.com/yungbote/seoflow-backend/internal/observability"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
	"github.com/yungbote/seoflow-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    *repos.Set
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *http.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv())

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	set := repos.NewSet(theDB, log)

	services, err := wireServices(theDB, log, cfg, set, clients, hub)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	handlers := wireHandlers(theDB, log, set, services, hub)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        set,
		Clients:      clients,
		Services:     services,
		SSEHub:       hub,
		Server:       wireServer(log, cfg, handlers),
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background roles: event forwarding and draining, the
// job runner and the cron sweeps.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	s := a.Services

	if a.Clients.Redis != nil {
		if err := s.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start sse forwarder: %w", err)
		}
		if err := bus.StartAgentEventForwarder(ctx, a.Log, a.Clients.Redis, a.SSEHub); err != nil {
			return fmt.Errorf("start agent event forwarder: %w", err)
		}
	}
	if s.Drainer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := s.Drainer.Run(ctx); err != nil {
				a.Log.Error("Event drainer stopped", "error", err)
			}
		}()
	}

	switch {
	case s.Temporal != nil:
		if err := s.Temporal.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
		if s.JobWorker != nil {
			s.JobWorker.StartReaper(ctx)
		}
	case s.JobWorker != nil:
		s.JobWorker.Start(ctx)
	}

	if s.Scheduler != nil {
		if err := s.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Server.Run(ctx, ":"+a.Cfg.Port, a.Cfg.ShutdownGrace)
}

// Close stops the background roles, flushes pending agent events and releases
// the connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownGrace)
	defer cancel()
	if a.Services.Emitter != nil {
		if err := a.Services.Emitter.Close(ctx); err != nil {
			a.Log.Warn("Flushing agent events failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	a.Log.Sync()
}
