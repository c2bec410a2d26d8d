// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/models"
)

const keysTable = "key_versions"

var keyColumns = []string{"id", "status", "created_at", "retention_until", "usage_count"}

type keyVersionRepository struct {
	*DB
}

// NewKeyVersionRepository constructs a [KeyVersionRepository] backed by db.
func NewKeyVersionRepository(db *DB) KeyVersionRepository {
	return &keyVersionRepository{DB: db}
}

// List returns every key version, oldest first.
func (k *keyVersionRepository) List(ctx context.Context) ([]models.EncryptionKeyVersion, error) {
	log := logger.FromContext(ctx)

	query, args, err := k.builder.
		Select(keyColumns...).
		From(keysTable).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := k.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "keyVersionRepository.List").
			Msg("failed to execute query for key versions")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	versions := make([]models.EncryptionKeyVersion, 0, 4)
	for rows.Next() {
		var (
			v         models.EncryptionKeyVersion
			status    string
			created   int64
			retention *int64
		)
		if err = rows.Scan(&v.ID, &status, &created, &retention, &v.UsageCount); err != nil {
			log.Err(err).
				Str("func", "keyVersionRepository.List").
				Msg("failed to scan key version row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		v.Status = models.KeyStatus(status)
		v.CreatedAt = fromMicros(created)
		v.RetentionUntil = fromNullMicros(retention)
		versions = append(versions, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return versions, nil
}

// Upsert inserts v or overwrites the stored status, retention and usage.
func (k *keyVersionRepository) Upsert(ctx context.Context, v models.EncryptionKeyVersion) error {
	query, args, err := k.builder.
		Insert(keysTable).
		Columns(keyColumns...).
		Values(v.ID, string(v.Status), toMicros(v.CreatedAt), toNullMicros(v.RetentionUntil), v.UsageCount).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = excluded.status, " +
			"retention_until = excluded.retention_until, usage_count = excluded.usage_count").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = k.runner(ctx).ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "keyVersionRepository.Upsert").
			Str("key_version", v.ID).
			Msg("error executing query for saving key version")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}
