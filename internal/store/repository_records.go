// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/models"
)

const recordsTable = "protected_records"

var recordColumns = []string{
	"entity_name", "entity_id", "key_version", "version", "fields", "created_at", "updated_at",
}

// recordRepository is the SQL implementation of [RecordRepository]. Fields
// are kept as one JSON column; sensitive values inside it are already sealed.
type recordRepository struct {
	*DB
}

// NewRecordRepository constructs a [RecordRepository] backed by db.
func NewRecordRepository(db *DB) RecordRepository {
	return &recordRepository{DB: db}
}

func (r *recordRepository) Get(ctx context.Context, entityName, entityID string) (*models.ProtectedRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"entity_name": entityName, "entity_id": entityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rec, err := scanRecord(r.runner(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Get").
			Str("entity", entityName).
			Msg("failed to scan protected record row")
		return nil, err
	}

	return rec, nil
}

func (r *recordRepository) Insert(ctx context.Context, rec *models.ProtectedRecord) error {
	log := logger.FromContext(ctx)

	fields, err := encodeJSONColumn(rec.Fields)
	if err != nil {
		return err
	}

	query, args, err := r.builder.
		Insert(recordsTable).
		Columns(recordColumns...).
		Values(rec.EntityName, rec.EntityID, rec.KeyVersion, rec.Version, fields,
			toMicros(rec.CreatedAt), toMicros(rec.UpdatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.runner(ctx).ExecContext(ctx, query, args...); err != nil {
		if r.isConflict(err) {
			return ErrRecordExists
		}
		log.Err(err).
			Str("func", "recordRepository.Insert").
			Str("entity", rec.EntityName).
			Msg("error executing query for saving protected record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *recordRepository) Update(ctx context.Context, rec *models.ProtectedRecord, expectedVersion int64) error {
	fields, err := encodeJSONColumn(rec.Fields)
	if err != nil {
		return err
	}

	query, args, err := r.builder.
		Update(recordsTable).
		Set("key_version", rec.KeyVersion).
		Set("version", rec.Version).
		Set("fields", fields).
		Set("updated_at", toMicros(rec.UpdatedAt)).
		Where(sq.Eq{"entity_name": rec.EntityName, "entity_id": rec.EntityID, "version": expectedVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.execOne(ctx, "recordRepository.Update", query, args, ErrVersionConflict)
}

func (r *recordRepository) Delete(ctx context.Context, entityName, entityID string, expectedVersion int64) error {
	query, args, err := r.builder.
		Delete(recordsTable).
		Where(sq.Eq{"entity_name": entityName, "entity_id": entityID, "version": expectedVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.execOne(ctx, "recordRepository.Delete", query, args, ErrVersionConflict)
}

func (r *recordRepository) ListNotOnKey(ctx context.Context, keyID string, after models.RecordRef, limit uint64) ([]models.ProtectedRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Select(recordColumns...).
		From(recordsTable).
		Where(notOnKey(keyID)).
		Where(sq.Or{
			sq.Gt{"entity_name": after.EntityName},
			sq.And{sq.Eq{"entity_name": after.EntityName}, sq.Gt{"entity_id": after.EntityID}},
		}).
		OrderBy("entity_name", "entity_id").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.ListNotOnKey").
			Str("key_version", keyID).
			Msg("failed to execute query for records pending re-encryption")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.ProtectedRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "recordRepository.ListNotOnKey").
				Msg("failed to scan protected record row")
			return nil, scanErr
		}
		records = append(records, *rec)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", "recordRepository.ListNotOnKey").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

func (r *recordRepository) CountNotOnKey(ctx context.Context, keyID string) (int64, error) {
	return r.count(ctx, notOnKey(keyID))
}

func (r *recordRepository) CountOnKey(ctx context.Context, keyID string) (int64, error) {
	return r.count(ctx, sq.Eq{"key_version": keyID})
}

func (r *recordRepository) Reseal(ctx context.Context, rec *models.ProtectedRecord, oldKey string) (bool, error) {
	fields, err := encodeJSONColumn(rec.Fields)
	if err != nil {
		return false, err
	}

	// version and updated_at stay: re-encryption is not a domain change
	query, args, err := r.builder.
		Update(recordsTable).
		Set("key_version", rec.KeyVersion).
		Set("fields", fields).
		Where(sq.Eq{"entity_name": rec.EntityName, "entity_id": rec.EntityID, "key_version": oldKey, "version": rec.Version}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	err = r.execOne(ctx, "recordRepository.Reseal", query, args, ErrVersionConflict)
	if errors.Is(err, ErrVersionConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *recordRepository) count(ctx context.Context, pred sq.Sqlizer) (int64, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From(recordsTable).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var n int64
	if err = r.runner(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "recordRepository.count").
			Msg("failed to count protected records")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return n, nil
}

// execOne runs a statement that must affect exactly one row, returning
// noRows otherwise.
func (r *recordRepository) execOne(ctx context.Context, fn, query string, args []any, noRows error) error {
	res, err := r.runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", fn).Msg("error executing statement")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return noRows
	}

	return nil
}

// notOnKey matches records with encrypted content sealed by another key.
func notOnKey(keyID string) sq.Sqlizer {
	return sq.And{sq.NotEq{"key_version": ""}, sq.NotEq{"key_version": keyID}}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ProtectedRecord, error) {
	var (
		rec              models.ProtectedRecord
		fields           string
		created, updated int64
	)

	err := row.Scan(&rec.EntityName, &rec.EntityID, &rec.KeyVersion, &rec.Version, &fields, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err = decodeJSONColumn(fields, &rec.Fields); err != nil {
		return nil, err
	}
	rec.CreatedAt = fromMicros(created)
	rec.UpdatedAt = fromMicros(updated)

	return &rec, nil
}
