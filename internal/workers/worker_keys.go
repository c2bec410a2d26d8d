// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"time"

	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/service"
)

// ReencryptionWorker runs the re-encryption sweep on a fixed schedule.
type ReencryptionWorker struct {
	keys     service.KeyLifecycleManager
	interval time.Duration
	batch    int
	logger   *logger.Logger
}

func NewReencryptionWorker(keys service.KeyLifecycleManager, cfg config.Workers, log *logger.Logger) *ReencryptionWorker {
	return &ReencryptionWorker{
		keys:     keys,
		interval: cfg.SweepInterval,
		batch:    cfg.SweepBatchSize,
		logger:   log,
	}
}

func (w *ReencryptionWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("re-encryption worker started")
	return every(ctx, w.interval, w.sweep)
}

func (w *ReencryptionWorker) sweep(ctx context.Context) {
	res, err := w.keys.Sweep(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.logger.Err(err).Str("func", "*ReencryptionWorker.sweep").Msg("re-encryption sweep failed")
		return
	}
	if res.Remaining > 0 {
		w.logger.Debug().Int64("remaining", res.Remaining).Msg("records still on an old key")
	}
}

// KeyRotationWorker evaluates the advisory rotation triggers, rotates when
// one fires and retires keys whose retention window has passed.
type KeyRotationWorker struct {
	keys     service.KeyLifecycleManager
	interval time.Duration
	now      func() time.Time
	logger   *logger.Logger
}

func NewKeyRotationWorker(keys service.KeyLifecycleManager, cfg config.Workers, log *logger.Logger) *KeyRotationWorker {
	return &KeyRotationWorker{
		keys:     keys,
		interval: cfg.RotationCheckInterval,
		now:      time.Now,
		logger:   log,
	}
}

func (w *KeyRotationWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("key rotation worker started")
	return every(ctx, w.interval, w.check)
}

func (w *KeyRotationWorker) check(ctx context.Context) {
	if err := w.keys.FlushUsage(ctx); err != nil {
		w.logger.Err(err).Str("func", "*KeyRotationWorker.check").Msg("failed to flush key usage")
	}

	if due, reason := w.keys.RotationDue(w.now()); due {
		_, err := w.keys.Rotate(ctx, service.SystemActor)
		switch {
		case errors.Is(err, service.ErrRotationInProgress):
			w.logger.Debug().Str("trigger", reason).Msg("rotation due but previous rotation is not finished")
		case errors.Is(err, adapter.ErrReadOnlyProvider):
			w.logger.Warn().Str("trigger", reason).Msg("rotation due but the secret provider is read-only")
		case err != nil:
			w.logger.Err(err).Str("func", "*KeyRotationWorker.check").Str("trigger", reason).Msg("key rotation failed")
		default:
			w.logger.Info().Str("trigger", reason).Msg("key rotated by schedule")
		}
	}

	retired, err := w.keys.RetireExpired(ctx, service.SystemActor)
	if err != nil {
		w.logger.Err(err).Str("func", "*KeyRotationWorker.check").Msg("failed to retire expired keys")
	}
	for _, id := range retired {
		w.logger.Info().Str("key_id", id).Msg("expired key retired")
	}
}
