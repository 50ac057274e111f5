// Package app provides the dependency injection container for the
// application.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
	"github.com/nkondo/timebridge/internal/infra/config"
	"github.com/nkondo/timebridge/internal/infra/logging"
	"github.com/nkondo/timebridge/internal/infra/perfex"
	"github.com/nkondo/timebridge/internal/infra/sqlite"
	"github.com/nkondo/timebridge/internal/usecase"
)

// Credential environment variables. Credential storage and encryption
// are outside this program; the environment is the hand-off point.
const (
	EnvEmail    = "TIMEBRIDGE_EMAIL"
	EnvPassword = "TIMEBRIDGE_PASSWORD"
)

// Container wires the application together. The store handle is created
// here at process start and closed at shutdown; nothing reaches it
// through ambient globals.
type Container struct {
	Config      *domain.Config
	Store       *sqlite.Store
	Clock       domain.Clock
	Logger      *logging.Logger
	Sessions    *usecase.SessionStore
	Cache       *usecase.TaskCache
	Timers      *usecase.TimerEngine
	Coordinator *usecase.SyncCoordinator
}

// New creates a Container from the configuration found in workDir.
func New(workDir string) (*Container, error) {
	loader := config.NewLoader(workDir)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(filepath.Dir(cfg.Store.Path), logging.ParseLevel(cfg.Log.Level))

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clock := domain.RealClock{}

	sessions := usecase.NewSessionStore(store.Sessions(), clock, logger, cfg.Session.TTL())
	cache := usecase.NewTaskCache(store.Tasks(), clock, logger, cfg.Sync.PageSize)
	timers := usecase.NewTimerEngine(store.Entries(), store.Tasks(), clock, logger, cfg.Sync.RetryAfter())

	remote := perfex.NewClient(cfg.Remote.BaseURL, nil)
	coordinator := usecase.NewSyncCoordinator(sessions, cache, timers, remote, clock, logger, usecase.SyncOptions{
		Credentials: domain.Credentials{
			Email:    os.Getenv(EnvEmail),
			Password: os.Getenv(EnvPassword),
		},
		Timeout:      cfg.Remote.Timeout(),
		DrainBatch:   cfg.Sync.DrainBatch,
		EvictMissing: cfg.Sync.EvictMissing,
	})

	return &Container{
		Config:      cfg,
		Store:       store,
		Clock:       clock,
		Logger:      logger,
		Sessions:    sessions,
		Cache:       cache,
		Timers:      timers,
		Coordinator: coordinator,
	}, nil
}

// NewSweeper builds the background sweeper from the container's config.
func (c *Container) NewSweeper() *usecase.Sweeper {
	return usecase.NewSweeper(c.Coordinator, c.Sessions, c.Cache, c.Logger, usecase.SweeperOptions{
		UserID:          c.Config.User,
		RefreshInterval: minute(c.Config.Sweep.RefreshMinutes),
		DrainInterval:   minute(c.Config.Sweep.DrainMinutes),
		ReapInterval:    minute(c.Config.Sweep.ReapMinutes),
		StaleAfter:      c.Config.Sync.StaleAfter(),
	})
}

func minute(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Close releases the store handle and the log file.
func (c *Container) Close() error {
	err := c.Store.Close()
	if logErr := c.Logger.Close(); err == nil {
		err = logErr
	}
	return err
}
