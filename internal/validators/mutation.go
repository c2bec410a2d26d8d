// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/MKhiriev/phi-guard/models"
)

// Field name constants used to restrict validation to a subset of fields.
const (
	FieldEntityName = "entity_name"
	FieldEntityID   = "entity_id"
	FieldActor      = "actor"
	FieldAction     = "action"
	FieldFields     = "fields"
	FieldReviewID   = "id"
	FieldTarget     = "target"
	FieldConfidence = "confidence"
	FieldTimeRange  = "time_range"
	FieldLimit      = "limit"
)

// MaxQueryLimit caps the number of audit records one query may return.
const MaxQueryLimit = 1000

// RequestValidator implements [Validator] for mutation requests, review
// queue transitions, guard submissions and audit queries.
type RequestValidator struct{}

// NewRequestValidator returns a [RequestValidator] as a [Validator].
func NewRequestValidator() Validator {
	return &RequestValidator{}
}

func (v *RequestValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.MutationRequest:
		return v.validateMutation(value, fields...)
	case *models.MutationRequest:
		return v.validateMutation(*value, fields...)

	case models.TransitionRequest:
		return v.validateTransition(value, fields...)
	case *models.TransitionRequest:
		return v.validateTransition(*value, fields...)

	case models.Submission:
		return validateConfidence(value.Confidence)
	case *models.Submission:
		return validateConfidence(value.Confidence)

	case models.AuditQuery:
		return v.validateAuditQuery(value, fields...)
	case *models.AuditQuery:
		return v.validateAuditQuery(*value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *RequestValidator) validateMutation(req models.MutationRequest, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldEntityName, FieldEntityID, FieldActor, FieldAction, FieldFields}
	}

	for _, f := range fields {
		switch f {
		case FieldEntityName:
			// "/" separates entity name and id in review item references
			if strings.TrimSpace(req.EntityName) == "" || strings.Contains(req.EntityName, "/") {
				return ErrInvalidEntityName
			}
		case FieldEntityID:
			if strings.TrimSpace(req.EntityID) == "" {
				return ErrInvalidEntityID
			}
		case FieldActor:
			if strings.TrimSpace(req.Actor) == "" {
				return ErrActorRequired
			}
		case FieldAction:
			switch req.Action {
			case models.ActionCreate, models.ActionUpdate, models.ActionDelete:
			default:
				return ErrInvalidAction
			}
		case FieldFields:
			if err := validateFieldInputs(req.Action, req.Fields); err != nil {
				return err
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func validateFieldInputs(action models.AuditAction, inputs []models.FieldInput) error {
	if action == models.ActionDelete {
		if len(inputs) > 0 {
			return ErrFieldsOnDelete
		}
		return nil
	}

	if len(inputs) == 0 {
		return ErrNoFields
	}

	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("validation error at index %d: %w", i, ErrInvalidFieldName)
		}
		if _, dup := seen[in.Name]; dup {
			return fmt.Errorf("validation error at index %d: %w: %q", i, ErrDuplicateField, in.Name)
		}
		seen[in.Name] = struct{}{}

		if !in.FreeText && (in.AnonymizedText != nil || in.Confidence != nil) {
			return fmt.Errorf("validation error at field %q: %w", in.Name, ErrUnexpectedAnonymization)
		}
		if in.InsuranceNumber && in.FreeText {
			return fmt.Errorf("validation error at field %q: %w", in.Name, ErrFreeTextInsuranceNumber)
		}
		if err := validateConfidence(in.Confidence); err != nil {
			return fmt.Errorf("validation error at field %q: %w", in.Name, err)
		}
	}

	return nil
}

func (v *RequestValidator) validateTransition(req models.TransitionRequest, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldReviewID, FieldTarget, FieldActor, FieldConfidence}
	}

	for _, f := range fields {
		switch f {
		case FieldReviewID:
			if strings.TrimSpace(req.ID) == "" {
				return ErrInvalidReviewID
			}
		case FieldTarget:
			if !req.Target.Valid() {
				return ErrInvalidTargetStatus
			}
		case FieldActor:
			if strings.TrimSpace(req.Actor) == "" {
				return ErrActorRequired
			}
		case FieldConfidence:
			if err := validateConfidence(req.Confidence); err != nil {
				return err
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *RequestValidator) validateAuditQuery(q models.AuditQuery, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldTimeRange, FieldLimit}
	}

	for _, f := range fields {
		switch f {
		case FieldTimeRange:
			if q.From != nil && q.To != nil && q.From.After(*q.To) {
				return ErrInvalidTimeRange
			}
		case FieldLimit:
			if q.Limit > MaxQueryLimit {
				return ErrLimitTooLarge
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

// validateConfidence accepts a missing score; a present one must lie in [0, 1].
func validateConfidence(c *float64) error {
	if c == nil {
		return nil
	}
	if math.IsNaN(*c) || *c < 0 || *c > 1 {
		return ErrInvalidConfidence
	}
	return nil
}
