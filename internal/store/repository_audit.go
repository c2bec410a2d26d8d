// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/models"
)

const auditTable = "audit_records"

// chainLockID is the PostgreSQL advisory lock key of the audit chain lane.
const chainLockID = 7_302_026

var auditColumns = []string{
	"id", "seq", "entity_name", "entity_id", "action", "changed_fields",
	"sensitive", "actor", "ts_micros", "previous_hash", "self_hash",
}

// auditRepository is the SQL implementation of [AuditRepository]. It has no
// update or delete statement.
type auditRepository struct {
	*DB
}

// NewAuditRepository constructs an [AuditRepository] backed by db.
func NewAuditRepository(db *DB) AuditRepository {
	return &auditRepository{DB: db}
}

// Lock takes a transaction-scoped advisory lock on PostgreSQL. SQLite
// already serialises writers, so it is a no-op there.
func (a *auditRepository) Lock(ctx context.Context) error {
	if a.driver != config.DriverPostgres {
		return nil
	}

	if _, err := a.runner(ctx).ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", chainLockID); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "auditRepository.Lock").
			Str("pg_code", postgresError(err)).
			Msg("failed to lock audit chain")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (a *auditRepository) Last(ctx context.Context) (*models.AuditRecord, error) {
	query, args, err := a.builder.
		Select(auditColumns...).
		From(auditTable).
		OrderBy("seq DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rec, err := scanAudit(a.runner(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "auditRepository.Last").
			Msg("failed to read audit chain tail")
		return nil, err
	}

	return rec, nil
}

func (a *auditRepository) Append(ctx context.Context, rec *models.AuditRecord) error {
	log := logger.FromContext(ctx)

	changed, err := encodeJSONColumn(rec.ChangedFieldNames)
	if err != nil {
		return err
	}

	query, args, err := a.builder.
		Insert(auditTable).
		Columns(auditColumns...).
		Values(rec.ID, rec.Seq, rec.EntityName, rec.EntityID, string(rec.Action), changed,
			rec.ContainsSensitiveData, rec.Actor, toMicros(rec.Timestamp), rec.PreviousHash, rec.SelfHash).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = a.runner(ctx).ExecContext(ctx, query, args...); err != nil {
		if a.isConflict(err) {
			log.Warn().
				Str("func", "auditRepository.Append").
				Int64("seq", rec.Seq).
				Msg("audit chain position already taken")
			return ErrChainConflict
		}
		log.Err(err).
			Str("func", "auditRepository.Append").
			Str("pg_code", postgresError(err)).
			Int64("seq", rec.Seq).
			Msg("error executing query for appending audit record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (a *auditRepository) Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildAuditQuery(a.builder, q).ToSql()
	if err != nil {
		log.Err(err).Str("func", "auditRepository.Query").Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := a.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "auditRepository.Query").
			Msg("failed to execute query for audit records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.AuditRecord, 0, 50)
	for rows.Next() {
		rec, scanErr := scanAudit(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "auditRepository.Query").
				Msg("failed to scan audit record row")
			return nil, scanErr
		}
		records = append(records, *rec)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", "auditRepository.Query").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

func (a *auditRepository) Statistics(ctx context.Context) (models.AuditStatistics, error) {
	log := logger.FromContext(ctx)
	stats := models.AuditStatistics{ByAction: make(map[models.AuditAction]int64)}

	query, args, err := a.builder.
		Select("action", "COUNT(*)", "SUM(CASE WHEN sensitive THEN 1 ELSE 0 END)").
		From(auditTable).
		GroupBy("action").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := a.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "auditRepository.Statistics").
			Msg("failed to execute query for audit statistics")
		return stats, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action           string
			total, sensitive int64
		)
		if err = rows.Scan(&action, &total, &sensitive); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		stats.ByAction[models.AuditAction(action)] = total
		stats.Total += total
		stats.Sensitive += sensitive
	}

	if err = rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return stats, nil
}

func buildAuditQuery(b sq.StatementBuilderType, q models.AuditQuery) sq.SelectBuilder {
	sb := b.Select(auditColumns...).From(auditTable)

	if q.AfterSeq > 0 {
		sb = sb.Where(sq.Gt{"seq": q.AfterSeq})
	}
	if q.EntityName != "" {
		sb = sb.Where(sq.Eq{"entity_name": q.EntityName})
	}
	if q.EntityID != "" {
		sb = sb.Where(sq.Eq{"entity_id": q.EntityID})
	}
	if q.Actor != "" {
		sb = sb.Where(sq.Eq{"actor": q.Actor})
	}
	if q.From != nil {
		sb = sb.Where(sq.GtOrEq{"ts_micros": toMicros(*q.From)})
	}
	if q.To != nil {
		sb = sb.Where(sq.LtOrEq{"ts_micros": toMicros(*q.To)})
	}

	sb = sb.OrderBy("seq")
	if q.Limit > 0 {
		sb = sb.Limit(q.Limit)
	}

	return sb
}

func scanAudit(row rowScanner) (*models.AuditRecord, error) {
	var (
		rec     models.AuditRecord
		action  string
		changed string
		ts      int64
	)

	err := row.Scan(&rec.ID, &rec.Seq, &rec.EntityName, &rec.EntityID, &action, &changed,
		&rec.ContainsSensitiveData, &rec.Actor, &ts, &rec.PreviousHash, &rec.SelfHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err = decodeJSONColumn(changed, &rec.ChangedFieldNames); err != nil {
		return nil, err
	}
	if rec.ChangedFieldNames == nil {
		rec.ChangedFieldNames = []string{}
	}
	rec.Action = models.AuditAction(action)
	rec.Timestamp = fromMicros(ts)

	return &rec, nil
}
