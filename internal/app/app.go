// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app assembles phi-guard from configuration: storage backend,
// secret provider, services, metrics, the admin server and the background
// workers. cmd/server and cmd/guardctl share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/handler"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/metrics"
	"github.com/MKhiriev/phi-guard/internal/server"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/store/memory"
	"github.com/MKhiriev/phi-guard/internal/workers"
)

var _ service.Observer = (*metrics.Metrics)(nil)

type App struct {
	Config   *config.StructuredConfig
	Storages *store.Storages
	Services *service.Services
	Metrics  *metrics.Metrics

	logger *logger.Logger
}

// New connects the storage backend, applies migrations, builds the services
// and loads the encryption keys. Missing active key material is fatal.
func New(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*App, error) {
	storages, err := NewStorages(ctx, cfg.Storage.DB, log)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg, storages, log)
	if err != nil {
		return nil, errors.Join(err, storages.Close())
	}
	return a, nil
}

func newApp(ctx context.Context, cfg *config.StructuredConfig, storages *store.Storages, log *logger.Logger) (*App, error) {
	if err := storages.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	secrets, err := adapter.NewSecretProvider(cfg.Secrets, log)
	if err != nil {
		return nil, fmt.Errorf("secret provider: %w", err)
	}

	m := metrics.New()
	services := service.NewServices(storages, secrets, *cfg, log, service.WithObserver(m))
	if err = services.Keys.Load(ctx); err != nil {
		return nil, fmt.Errorf("load encryption keys: %w", err)
	}

	return &App{
		Config:   cfg,
		Storages: storages,
		Services: services,
		Metrics:  m,
		logger:   log,
	}, nil
}

// NewStorages opens the backend selected by cfg.Driver.
func NewStorages(ctx context.Context, cfg config.DB, log *logger.Logger) (*store.Storages, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage, nothing survives a restart")
		return memory.NewStorages(), nil
	}

	storages, err := store.NewStorages(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return storages, nil
}

// Run serves the admin API and runs the key workers until ctx is cancelled.
// Usage counters are flushed once more on the way out.
func (a *App) Run(ctx context.Context) error {
	handlers, err := handler.NewHandlers(a.Services, a.Metrics, *a.Config, a.logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(handlers, a.Config.Server, a.logger)
	if err != nil {
		return err
	}

	ws := workers.NewWorkers(
		workers.Func(srv.RunServer),
		workers.NewReencryptionWorker(a.Services.Keys, a.Config.Workers, a.logger),
		workers.NewKeyRotationWorker(a.Services.Keys, a.Config.Workers, a.logger),
	)

	runErr := ws.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err = a.Services.Keys.FlushUsage(flushCtx); err != nil {
		a.logger.Err(err).Msg("flush key usage on shutdown")
	}

	return runErr
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.Storages.Close()
}
