// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/models"
)

// DefaultSweepBatch is used when Sweep is called with a non-positive batch.
const DefaultSweepBatch = 100

// Sweep walks the records not on the Active key in key order. Every record
// is re-encrypted in its own short transaction, so an interrupted sweep
// leaves each record fully on one key and simply resumes on the next pass.
func (m *keyLifecycleManager) Sweep(ctx context.Context, batch int) (models.SweepResult, error) {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	m.mu.RLock()
	target := m.activeID
	m.mu.RUnlock()
	if target == "" {
		return models.SweepResult{}, ErrNoActiveKey
	}

	var (
		result models.SweepResult
		cursor models.RecordRef
	)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := m.records.ListNotOnKey(ctx, target, cursor, uint64(batch))
		if err != nil {
			return result, err
		}

		for _, rec := range page {
			cursor = models.RecordRef{EntityName: rec.EntityName, EntityID: rec.EntityID}

			migrated, err := m.resealRecord(ctx, cursor)
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return result, err
			case err != nil:
				result.Failed++
				m.logger.Warn().Err(err).
					Str("entity", rec.EntityName).
					Str("entity_id", rec.EntityID).
					Str("key_id", rec.KeyVersion).
					Msg("re-encryption of record failed")
			case migrated:
				result.Migrated++
			default:
				result.Skipped++
			}
		}

		if len(page) < batch {
			break
		}
	}

	remaining, err := m.PendingReencryptionCount(ctx)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining

	m.opts.observer.RecordsResealed(result.Migrated, result.Failed)
	if result.Migrated > 0 || result.Failed > 0 {
		m.logger.Info().
			Int("migrated", result.Migrated).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Int64("remaining", result.Remaining).
			Msg("re-encryption sweep finished")
	}

	return result, nil
}

// resealRecord moves one record onto the Active key. It runs on the audit
// lane without writing an audit record, so it cannot interleave with a
// rotation and always seals with the key that is Active at commit.
func (m *keyLifecycleManager) resealRecord(ctx context.Context, ref models.RecordRef) (bool, error) {
	var (
		migrated bool
		sealed   int64
		activeID string
	)

	err := m.audit.InTx(ctx, func(ctx context.Context) error {
		rec, err := m.records.Get(ctx, ref.EntityName, ref.EntityID)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		id, material, err := m.ActiveKey(ctx)
		if err != nil {
			return err
		}
		if rec.KeyVersion == id || !rec.HasEncryptedFields() {
			return nil
		}

		old := rec.KeyVersion
		fields, n, err := resealFields(rec.Fields,
			func(f models.EncryptedField) ([]byte, error) { return m.Decrypt(ctx, f, old) },
			func(p []byte) (models.EncryptedField, error) { return m.opts.cipher.Encrypt(p, material) },
		)
		if err != nil {
			return err
		}

		next := *rec
		next.Fields = fields
		next.KeyVersion = id
		if migrated, err = m.records.Reseal(ctx, &next, old); err != nil {
			return err
		}
		sealed, activeID = n, id
		return nil
	})
	if err != nil {
		return false, err
	}

	if migrated {
		m.RecordUsage(activeID, sealed)
	}
	return migrated, nil
}
