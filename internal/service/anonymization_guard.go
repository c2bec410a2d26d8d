// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/policy"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/internal/validators"
	"github.com/MKhiriev/phi-guard/models"
)

// UnknownActor is audited for a bypass attempt that carried no identity.
const UnknownActor = "unknown"

type anonymizationGuard struct {
	audit     ChangeAuditRecorder
	validator validators.Validator

	opts   options
	logger *logger.Logger
}

// NewAnonymizationGuard returns the guard. There is no way to construct a
// guard that lets raw free text through.
func NewAnonymizationGuard(audit ChangeAuditRecorder, validator validators.Validator, log *logger.Logger, opts ...Option) AnonymizationGuard {
	log.Debug().Msg("creating anonymization guard")
	return &anonymizationGuard{
		audit:     audit,
		validator: validator,
		opts:      newOptions(opts),
		logger:    log,
	}
}

func (g *anonymizationGuard) Validate(ctx context.Context, s models.Submission) (models.GuardDecision, error) {
	missing := anonymizationMissing(s)

	if s.BypassRequested {
		entity, id := splitSourceRecordID(s.SourceRecordID)
		err := g.RejectBypass(ctx, entity, id, s.Actor, []string{s.FieldName})
		if missing {
			err = errors.Join(err, ErrAnonymizationRequired)
		}
		return models.GuardDecision{}, err
	}

	if err := g.validator.Validate(ctx, s); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		if missing {
			err = errors.Join(fmt.Errorf("%w: field %q", ErrAnonymizationRequired, s.FieldName), err)
		}
		return models.GuardDecision{}, err
	}
	if missing {
		return models.GuardDecision{}, fmt.Errorf("%w: field %q", ErrAnonymizationRequired, s.FieldName)
	}
	if s.RawText == nil || *s.RawText == "" {
		return models.GuardDecision{Accepted: true, Status: models.ReviewAutoApproved}, nil
	}

	// a detector that reported no score is treated as the least confident
	confidence := 0.0
	if s.Confidence != nil {
		confidence = *s.Confidence
	}
	if !policy.RequiresReview(confidence) {
		return models.GuardDecision{Accepted: true, Status: models.ReviewAutoApproved}, nil
	}

	item := &models.ReviewItem{
		ID:             g.opts.ids.Generate(),
		SourceRecordID: s.SourceRecordID,
		FieldName:      s.FieldName,
		DetectedSpans:  slices.Clone(s.DetectedSpans),
		Confidence:     confidence,
		Reason:         fmt.Sprintf("confidence %.2f below review threshold %.2f", confidence, policy.ReviewThreshold),
		Status:         models.ReviewPending,
		Created:        g.opts.now().UTC().Truncate(time.Microsecond),
	}
	if item.DetectedSpans == nil {
		item.DetectedSpans = []string{}
	}

	return models.GuardDecision{Accepted: true, Status: models.ReviewPending, ReviewItem: item}, nil
}

// RejectBypass opens its own audit transaction and must not be called
// from inside InTx: the violation is recorded even though the caller's
// mutation is refused.
func (g *anonymizationGuard) RejectBypass(ctx context.Context, entityName, entityID, actor string, fields []string) error {
	if actor == "" {
		actor, _ = utils.GetActorFromContext(ctx)
	}
	if actor == "" {
		actor = UnknownActor
	}
	if entityName == "" {
		entityName = "Submission"
	}
	if entityID == "" {
		entityID = UnknownActor
	}

	after := make([]models.FieldSnapshot, 0, len(fields))
	for _, name := range fields {
		after = append(after, models.FieldSnapshot{Name: name, Sensitive: true})
	}

	g.opts.observer.SecurityViolation()
	logger.FromContext(ctx).Warn().
		Str("actor", actor).
		Str("entity", entityName).
		Str("entity_id", entityID).
		Strs("fields", fields).
		Msg("attempt to bypass anonymization rejected")

	if _, err := g.audit.Record(ctx, models.AuditMutation{
		EntityName: entityName,
		EntityID:   entityID,
		Action:     models.ActionSecurityViolation,
		Actor:      actor,
		After:      after,
	}); err != nil {
		g.logger.Err(err).Str("func", "*anonymizationGuard.RejectBypass").Msg("failed to audit security violation")
		return errors.Join(ErrSecurityViolation, err)
	}

	return ErrSecurityViolation
}

func anonymizationMissing(s models.Submission) bool {
	if s.RawText == nil || *s.RawText == "" {
		return false
	}
	return s.AnonymizedText == nil || strings.TrimSpace(*s.AnonymizedText) == ""
}

func splitSourceRecordID(source string) (string, string) {
	entity, id, ok := strings.Cut(source, "/")
	if !ok {
		return "", source
	}
	return entity, id
}
