// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/policy"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/internal/validators"
	"github.com/MKhiriev/phi-guard/models"
)

type reviewQueue struct {
	reviews   store.ReviewRepository
	audit     ChangeAuditRecorder
	validator validators.Validator

	opts   options
	logger *logger.Logger
}

func NewReviewQueue(reviews store.ReviewRepository, audit ChangeAuditRecorder, validator validators.Validator, log *logger.Logger, opts ...Option) ReviewQueue {
	log.Debug().Msg("creating review queue")
	return &reviewQueue{
		reviews:   reviews,
		audit:     audit,
		validator: validator,
		opts:      newOptions(opts),
		logger:    log,
	}
}

// Enqueue audits as the actor in ctx, or as [SystemActor].
func (q *reviewQueue) Enqueue(ctx context.Context, item models.ReviewItem) (*models.ReviewItem, error) {
	if item.SourceRecordID == "" || item.FieldName == "" {
		return nil, fmt.Errorf("%w: review item needs a source record and a field", ErrInvalidRequest)
	}
	if item.ID == "" {
		item.ID = q.opts.ids.Generate()
	}
	if item.Created.IsZero() {
		item.Created = q.opts.now().UTC().Truncate(time.Microsecond)
	}
	if item.DetectedSpans == nil {
		item.DetectedSpans = []string{}
	}
	item.Status = models.ReviewPending

	actor, ok := utils.GetActorFromContext(ctx)
	if !ok || actor == "" {
		actor = SystemActor
	}

	err := q.audit.InTx(ctx, func(ctx context.Context) error {
		if err := q.reviews.Create(ctx, &item); err != nil {
			return err
		}
		_, err := q.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityReviewItem,
			EntityID:   item.ID,
			Action:     models.ActionCreate,
			Actor:      actor,
			After:      reviewSnapshot(item),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	q.opts.observer.ReviewItemQueued()
	return &item, nil
}

func (q *reviewQueue) Get(ctx context.Context, id string) (*models.ReviewItem, error) {
	return q.reviews.Get(ctx, id)
}

func (q *reviewQueue) ListPending(ctx context.Context, limit uint64) ([]models.ReviewItem, error) {
	return q.reviews.ListByStatus(ctx, models.ReviewPending, limit)
}

func (q *reviewQueue) List(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	return q.reviews.ListByStatus(ctx, status, limit)
}

func (q *reviewQueue) Transition(ctx context.Context, req models.TransitionRequest) (*models.ReviewItem, error) {
	if err := q.validator.Validate(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var before, after models.ReviewItem
	err := q.audit.InTx(ctx, func(ctx context.Context) error {
		item, err := q.reviews.Get(ctx, req.ID)
		if err != nil {
			return err
		}
		before = *item

		if after, err = nextReviewState(before, req, q.opts.now().UTC().Truncate(time.Microsecond)); err != nil {
			return err
		}
		if err = q.reviews.Update(ctx, &after, before.Status); err != nil {
			return err
		}

		_, err = q.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityReviewItem,
			EntityID:   after.ID,
			Action:     models.ActionUpdate,
			Actor:      req.Actor,
			Before:     reviewSnapshot(before),
			After:      reviewSnapshot(after),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	q.opts.observer.ReviewTransitioned(string(before.Status), string(after.Status))
	logger.FromContext(ctx).Info().
		Str("review_id", after.ID).
		Str("from", string(before.Status)).
		Str("to", string(after.Status)).
		Str("actor", req.Actor).
		Msg("review item transitioned")

	return &after, nil
}

// nextReviewState is the transition function of the review state machine.
// It never mutates item.
func nextReviewState(item models.ReviewItem, req models.TransitionRequest, now time.Time) (models.ReviewItem, error) {
	next := item
	next.DetectedSpans = slices.Clone(item.DetectedSpans)

	invalid := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, req.Target)

	switch req.Target {
	case models.ReviewInReview:
		if item.Status != models.ReviewPending {
			return models.ReviewItem{}, invalid
		}
		next.Reviewer = req.Actor

	case models.ReviewApproved, models.ReviewRejected:
		if item.Status != models.ReviewInReview {
			return models.ReviewItem{}, invalid
		}
		next.Reviewer = req.Actor
		next.ReviewedAt = &now
		next.ReviewerNotes = req.Justification

	case models.ReviewWhitelisted:
		if item.Status != models.ReviewPending && item.Status != models.ReviewInReview {
			return models.ReviewItem{}, invalid
		}
		if strings.TrimSpace(req.Justification) == "" {
			return models.ReviewItem{}, ErrJustificationRequired
		}
		next.Reviewer = req.Actor
		next.ReviewedAt = &now
		next.ReviewerNotes = req.Justification

	case models.ReviewPending:
		if item.Status != models.ReviewRejected {
			return models.ReviewItem{}, invalid
		}
		if req.Confidence == nil {
			return models.ReviewItem{}, ErrConfidenceRequired
		}
		next.Confidence = *req.Confidence
		next.Reviewer = ""
		next.ReviewedAt = nil
		next.ReviewerNotes = req.Justification

	default:
		// AutoApproved is only ever set on creation
		return models.ReviewItem{}, invalid
	}

	next.Status = req.Target
	return next, nil
}

// reviewSnapshot describes a review item for the audit trail. Detected
// spans are excerpts of the raw text and count as sensitive.
func reviewSnapshot(item models.ReviewItem) []models.FieldSnapshot {
	str := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	confidence := strconv.FormatFloat(item.Confidence, 'f', -1, 64)
	spans := strings.Join(item.DetectedSpans, "\x1f")
	var reviewedAt *string
	if item.ReviewedAt != nil {
		reviewedAt = str(strconv.FormatInt(item.ReviewedAt.UnixMicro(), 10))
	}

	return []models.FieldSnapshot{
		{Name: "confidence", Value: &confidence},
		{Name: "detected_spans", Value: str(spans), Sensitive: true},
		{Name: "field_name", Value: str(item.FieldName)},
		{Name: "reason", Value: str(item.Reason)},
		{Name: "reviewed_at", Value: reviewedAt},
		{Name: "reviewer", Value: str(item.Reviewer)},
		{Name: "reviewer_notes", Value: str(item.ReviewerNotes)},
		{Name: "source_record_id", Value: str(item.SourceRecordID)},
		{Name: "status", Value: str(string(item.Status))},
	}
}
