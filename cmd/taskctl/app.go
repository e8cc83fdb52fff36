package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/backend"
	"github.com/noah-isme/taskroster/internal/session"
	"github.com/noah-isme/taskroster/pkg/cache"
	"github.com/noah-isme/taskroster/pkg/config"
	"github.com/noah-isme/taskroster/pkg/logger"
	"github.com/noah-isme/taskroster/pkg/storage"
)

const redisKeyPrefix = "taskroster:"

type app struct {
	backendName string

	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error

	// loadConfig and openBackend are replaced in tests.
	loadConfig  func() (*config.Config, error)
	openBackend func(a *app) (backend.Backend, error)
}

func newApp() *app {
	return &app{loadConfig: config.Load, openBackend: openConfiguredBackend}
}

func (a *app) init() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.backendName != "" {
		cfg.Client.Backend = a.backendName
	}
	a.cfg = cfg

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logr
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// session opens the configured backend and loads the task collection.
func (a *app) session(ctx context.Context, confirm session.Confirmer) (*session.Session, error) {
	b, err := a.openBackend(a)
	if err != nil {
		return nil, err
	}
	s := session.New(b,
		session.WithConfirmer(confirm),
		session.WithMaxDescription(a.cfg.Tasks.MaxDescription),
		session.WithLogger(a.logger),
	)
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func openConfiguredBackend(a *app) (backend.Backend, error) {
	client := a.cfg.Client
	switch client.Backend {
	case config.BackendREST, "":
		return backend.NewREST(client.BaseURL, client.Timeout, a.logger), nil
	case config.BackendFile:
		store, err := storage.NewFileStore(client.DataDir)
		if err != nil {
			return nil, err
		}
		return backend.NewLocal(store, client.StorageKey, a.logger), nil
	case config.BackendRedis:
		rdb, err := cache.NewRedis(a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		return backend.NewLocal(cache.NewStore(rdb, redisKeyPrefix), client.StorageKey, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want rest, file or redis)", client.Backend)
	}
}
