// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/phi-guard/models"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func validMutation() models.MutationRequest {
	return models.MutationRequest{
		EntityName: "Transcript",
		EntityID:   "t1",
		Action:     models.ActionCreate,
		Actor:      "dr.house",
		Fields: []models.FieldInput{
			{Name: "session_id", Value: strPtr("s1")},
			{
				Name:           "body",
				Value:          strPtr("Patient Meier reports pain"),
				FreeText:       true,
				AnonymizedText: strPtr("Patient [NAME] reports pain"),
				Confidence:     floatPtr(0.9),
			},
		},
	}
}

func TestNewRequestValidator(t *testing.T) {
	require.NotNil(t, NewRequestValidator())
}

func TestValidate_UnsupportedType(t *testing.T) {
	assert.ErrorIs(t, NewRequestValidator().Validate(context.Background(), 42), ErrUnsupportedType)
}

func TestValidate_Mutation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.MutationRequest)
		fields  []string
		wantErr error
	}{
		{name: "valid", mutate: func(*models.MutationRequest) {}},
		{name: "empty entity", mutate: func(r *models.MutationRequest) { r.EntityName = " " }, wantErr: ErrInvalidEntityName},
		{name: "slash in entity", mutate: func(r *models.MutationRequest) { r.EntityName = "a/b" }, wantErr: ErrInvalidEntityName},
		{name: "empty id", mutate: func(r *models.MutationRequest) { r.EntityID = "" }, wantErr: ErrInvalidEntityID},
		{name: "no actor", mutate: func(r *models.MutationRequest) { r.Actor = "" }, wantErr: ErrActorRequired},
		{name: "security violation is not submittable", mutate: func(r *models.MutationRequest) { r.Action = models.ActionSecurityViolation }, wantErr: ErrInvalidAction},
		{name: "no fields", mutate: func(r *models.MutationRequest) { r.Fields = nil }, wantErr: ErrNoFields},
		{
			name:    "delete with fields",
			mutate:  func(r *models.MutationRequest) { r.Action = models.ActionDelete },
			wantErr: ErrFieldsOnDelete,
		},
		{
			name: "delete without fields",
			mutate: func(r *models.MutationRequest) {
				r.Action = models.ActionDelete
				r.Fields = nil
			},
		},
		{
			name:    "duplicate field",
			mutate:  func(r *models.MutationRequest) { r.Fields[1].Name = "session_id" },
			wantErr: ErrDuplicateField,
		},
		{
			name:    "blank field name",
			mutate:  func(r *models.MutationRequest) { r.Fields[0].Name = "" },
			wantErr: ErrInvalidFieldName,
		},
		{
			name:    "anonymized text on plain field",
			mutate:  func(r *models.MutationRequest) { r.Fields[0].AnonymizedText = strPtr("x") },
			wantErr: ErrUnexpectedAnonymization,
		},
		{
			name:    "free text insurance number",
			mutate:  func(r *models.MutationRequest) { r.Fields[1].InsuranceNumber = true },
			wantErr: ErrFreeTextInsuranceNumber,
		},
		{
			name:    "confidence above one",
			mutate:  func(r *models.MutationRequest) { r.Fields[1].Confidence = floatPtr(1.01) },
			wantErr: ErrInvalidConfidence,
		},
		{
			name:    "negative confidence",
			mutate:  func(r *models.MutationRequest) { r.Fields[1].Confidence = floatPtr(-0.1) },
			wantErr: ErrInvalidConfidence,
		},
		{
			name:    "NaN confidence",
			mutate:  func(r *models.MutationRequest) { r.Fields[1].Confidence = floatPtr(math.NaN()) },
			wantErr: ErrInvalidConfidence,
		},
		{
			name:   "scoped to entity only",
			mutate: func(r *models.MutationRequest) { r.Actor = "" },
			fields: []string{FieldEntityName, FieldEntityID},
		},
		{
			name:    "unknown field",
			mutate:  func(*models.MutationRequest) {},
			fields:  []string{"colour"},
			wantErr: ErrUnknownField,
		},
	}

	v := NewRequestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validMutation()
			tt.mutate(&req)

			err := v.Validate(context.Background(), &req, tt.fields...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Transition(t *testing.T) {
	v := NewRequestValidator()
	ctx := context.Background()

	valid := models.TransitionRequest{ID: "r1", Target: models.ReviewInReview, Actor: "alice"}
	assert.NoError(t, v.Validate(ctx, valid))

	bad := valid
	bad.ID = ""
	assert.ErrorIs(t, v.Validate(ctx, bad), ErrInvalidReviewID)

	bad = valid
	bad.Target = "Done"
	assert.ErrorIs(t, v.Validate(ctx, &bad), ErrInvalidTargetStatus)

	bad = valid
	bad.Actor = ""
	assert.ErrorIs(t, v.Validate(ctx, bad), ErrActorRequired)

	bad = valid
	bad.Confidence = floatPtr(2)
	assert.ErrorIs(t, v.Validate(ctx, bad), ErrInvalidConfidence)
}

func TestValidate_Submission(t *testing.T) {
	v := NewRequestValidator()
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, models.Submission{}))
	assert.NoError(t, v.Validate(ctx, &models.Submission{Confidence: floatPtr(0)}))
	assert.ErrorIs(t, v.Validate(ctx, models.Submission{Confidence: floatPtr(math.Inf(1))}), ErrInvalidConfidence)
}

func TestValidate_AuditQuery(t *testing.T) {
	v := NewRequestValidator()
	ctx := context.Background()
	now := time.Now()
	earlier := now.Add(-time.Hour)

	assert.NoError(t, v.Validate(ctx, models.AuditQuery{From: &earlier, To: &now, Limit: MaxQueryLimit}))
	assert.ErrorIs(t, v.Validate(ctx, models.AuditQuery{From: &now, To: &earlier}), ErrInvalidTimeRange)
	assert.ErrorIs(t, v.Validate(ctx, &models.AuditQuery{Limit: MaxQueryLimit + 1}), ErrLimitTooLarge)
}
