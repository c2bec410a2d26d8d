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

const reviewTable = "review_items"

var reviewColumns = []string{
	"id", "source_record_id", "field_name", "detected_spans", "confidence", "reason",
	"status", "created_at", "reviewed_at", "reviewer", "reviewer_notes",
}

type reviewRepository struct {
	*DB
}

// NewReviewRepository constructs a [ReviewRepository] backed by db.
func NewReviewRepository(db *DB) ReviewRepository {
	return &reviewRepository{DB: db}
}

func (r *reviewRepository) Create(ctx context.Context, item *models.ReviewItem) error {
	spans, err := encodeJSONColumn(nonNil(item.DetectedSpans))
	if err != nil {
		return err
	}

	query, args, err := r.builder.
		Insert(reviewTable).
		Columns(reviewColumns...).
		Values(item.ID, item.SourceRecordID, item.FieldName, spans, item.Confidence, item.Reason,
			string(item.Status), toMicros(item.Created), toNullMicros(item.ReviewedAt), item.Reviewer, item.ReviewerNotes).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.runner(ctx).ExecContext(ctx, query, args...); err != nil {
		if r.isConflict(err) {
			return ErrReviewItemExists
		}
		logger.FromContext(ctx).Err(err).
			Str("func", "reviewRepository.Create").
			Str("review_id", item.ID).
			Msg("error executing query for saving review item")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *reviewRepository) Get(ctx context.Context, id string) (*models.ReviewItem, error) {
	query, args, err := r.builder.
		Select(reviewColumns...).
		From(reviewTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	item, err := scanReview(r.runner(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewItemNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "reviewRepository.Get").
			Str("review_id", id).
			Msg("failed to scan review item row")
		return nil, err
	}

	return item, nil
}

func (r *reviewRepository) Update(ctx context.Context, item *models.ReviewItem, expected models.ReviewStatus) error {
	query, args, err := r.builder.
		Update(reviewTable).
		Set("confidence", item.Confidence).
		Set("status", string(item.Status)).
		Set("reviewed_at", toNullMicros(item.ReviewedAt)).
		Set("reviewer", item.Reviewer).
		Set("reviewer_notes", item.ReviewerNotes).
		Where(sq.Eq{"id": item.ID, "status": string(expected)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := r.runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "reviewRepository.Update").
			Str("review_id", item.ID).
			Msg("error executing query for updating review item")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	return nil
}

func (r *reviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error) {
	log := logger.FromContext(ctx)

	sb := r.builder.
		Select(reviewColumns...).
		From(reviewTable).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at", "id")
	if limit > 0 {
		sb = sb.Limit(limit)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "reviewRepository.ListByStatus").
			Str("status", string(status)).
			Msg("failed to execute query for review items")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	items := make([]models.ReviewItem, 0, 50)
	for rows.Next() {
		item, scanErr := scanReview(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "reviewRepository.ListByStatus").
				Msg("failed to scan review item row")
			return nil, scanErr
		}
		items = append(items, *item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return items, nil
}

func scanReview(row rowScanner) (*models.ReviewItem, error) {
	var (
		item     models.ReviewItem
		spans    string
		status   string
		created  int64
		reviewed *int64
	)

	err := row.Scan(&item.ID, &item.SourceRecordID, &item.FieldName, &spans, &item.Confidence, &item.Reason,
		&status, &created, &reviewed, &item.Reviewer, &item.ReviewerNotes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err = decodeJSONColumn(spans, &item.DetectedSpans); err != nil {
		return nil, err
	}
	item.Status = models.ReviewStatus(status)
	item.Created = fromMicros(created)
	item.ReviewedAt = fromNullMicros(reviewed)

	return &item, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
