package service

import (
	"context"
	"errors"
	"testing"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/store/memory"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptCreate(confidence float64) models.MutationRequest {
	return models.MutationRequest{
		EntityName: "Transcript",
		EntityID:   "t-1",
		Action:     models.ActionCreate,
		Actor:      "scribe",
		Fields: []models.FieldInput{{
			Name:           "body",
			Value:          ptr("Jane Roe was seen today"),
			FreeText:       true,
			AnonymizedText: ptr("[NAME] was seen today"),
			Confidence:     &confidence,
			DetectedSpans:  []string{"Jane Roe"},
		}},
	}
}

func TestRecordService_Apply_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.services.Records.Apply(ctx, patientCreate("p-1"))
	require.NoError(t, err)
	require.NotNil(t, res.Audit)
	assert.Equal(t, int64(1), res.Record.Version)
	assert.Equal(t, "k1", res.Record.KeyVersion)
	assert.Equal(t, []string{"name", "ward"}, res.Audit.ChangedFieldNames)
	assert.True(t, res.Audit.ContainsSensitiveData)
	assert.Equal(t, "dr.house", res.Audit.Actor)

	stored, err := env.storages.Records.Get(ctx, "Patient", "p-1")
	require.NoError(t, err)
	name, _ := stored.Field("name")
	assert.NotContains(t, string(name.Value), "Jane Roe")
	assert.Len(t, name.Value, models.HeaderSize+len("Jane Roe"))
	ward, _ := stored.Field("ward")
	assert.Equal(t, "B2", string(ward.Value))

	plain, err := env.services.Records.Read(ctx, "Patient", "p-1")
	require.NoError(t, err)
	assert.Equal(t, []models.PlainField{
		{Name: "name", Value: ptr("Jane Roe"), Sensitive: true},
		{Name: "ward", Value: ptr("B2")},
	}, plain.Fields)

	_, err = env.services.Records.Apply(ctx, patientCreate("p-1"))
	assert.ErrorIs(t, err, store.ErrRecordExists)
}

func TestRecordService_Apply_ActorFromContext(t *testing.T) {
	env := newTestEnv(t)

	req := patientCreate("p-1")
	req.Actor = ""
	_, err := env.services.Records.Apply(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	res, err := env.services.Records.Apply(utils.WithActor(context.Background(), "nurse"), req)
	require.NoError(t, err)
	assert.Equal(t, "nurse", res.Audit.Actor)
}

func TestRecordService_Apply_Update(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.services.Records.Apply(ctx, patientCreate("p-1"))
	require.NoError(t, err)

	res, err := env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ward", Value: ptr("C1")}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Audit)
	assert.Equal(t, []string{"ward"}, res.Audit.ChangedFieldNames)
	assert.Equal(t, int64(2), res.Record.Version)

	plain, err := env.services.Records.Read(ctx, "Patient", "p-1")
	require.NoError(t, err)
	require.Len(t, plain.Fields, 2)
	assert.Equal(t, "Jane Roe", *plain.Fields[0].Value)
	assert.Equal(t, "C1", *plain.Fields[1].Value)

	// same value again: nothing is written or audited
	noop, err := env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ward", Value: ptr("C1")}},
	})
	require.NoError(t, err)
	assert.Nil(t, noop.Audit)
	assert.Equal(t, int64(2), noop.Record.Version)
	assert.Len(t, env.auditLog(t), 3)

	_, err = env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-9", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ward", Value: ptr("C1")}},
	})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestRecordService_Apply_UpdateRetagsSensitive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.services.Records.Apply(ctx, patientCreate("p-1"))
	require.NoError(t, err)

	// the value is unchanged, only the tag is new
	res, err := env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ward", Value: ptr("B2"), Sensitive: true}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Audit)
	assert.Equal(t, models.ActionUpdate, res.Audit.Action)
	assert.Equal(t, []string{"ward"}, res.Audit.ChangedFieldNames)
	assert.True(t, res.Audit.ContainsSensitiveData)
	assert.Equal(t, int64(2), res.Record.Version)

	stored, err := env.storages.Records.Get(ctx, "Patient", "p-1")
	require.NoError(t, err)
	ward, ok := stored.Field("ward")
	require.True(t, ok)
	assert.True(t, ward.Sensitive)
	assert.NotEqual(t, "B2", string(ward.Value))
	assert.Len(t, ward.Value, models.HeaderSize+len("B2"))

	plain, err := env.services.Records.Read(ctx, "Patient", "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlainField{Name: "ward", Value: ptr("B2"), Sensitive: true}, plain.Fields[1])
	assert.Len(t, env.auditLog(t), 3)
}

func TestRecordService_Apply_InsuranceNumberLookupHash(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := patientCreate("p-1")
	req.Fields = append(req.Fields, models.FieldInput{Name: "ahv", Value: ptr("756.1234.5678.97"), InsuranceNumber: true})
	res, err := env.services.Records.Apply(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, res.Audit.ChangedFieldNames, "ahv")
	assert.Contains(t, res.Audit.ChangedFieldNames, "ahv_hash")

	stored, err := env.storages.Records.Get(ctx, "Patient", "p-1")
	require.NoError(t, err)
	number, ok := stored.Field("ahv")
	require.True(t, ok)
	assert.True(t, number.Sensitive)
	assert.NotContains(t, string(number.Value), "756.1234")
	hash, ok := stored.Field("ahv_hash")
	require.True(t, ok)
	assert.False(t, hash.Sensitive)
	assert.Equal(t, "934b94dc8167cf6aca3fd740aacc59f15bec054f391bc961dd6228fb87f09519", string(hash.Value))

	// clearing the number clears its hash
	_, err = env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ahv", InsuranceNumber: true}},
	})
	require.NoError(t, err)
	stored, err = env.storages.Records.Get(ctx, "Patient", "p-1")
	require.NoError(t, err)
	hash, ok = stored.Field("ahv_hash")
	require.True(t, ok)
	assert.True(t, hash.Null)

	_, err = env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-2", Action: models.ActionCreate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ahv", Value: ptr("756-1234"), InsuranceNumber: true}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, crypto.ErrInvalidInsuranceNumber)
}

func TestRecordService_Apply_UpdateAfterRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.services.Records.Apply(ctx, patientCreate("p-1"))
	require.NoError(t, err)
	rotation, err := env.services.Keys.Rotate(ctx, "ops")
	require.NoError(t, err)

	res, err := env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionUpdate, Actor: "dr.house",
		Fields: []models.FieldInput{{Name: "ward", Value: ptr("C1")}},
	})
	require.NoError(t, err)
	assert.Equal(t, rotation.NewVersion.ID, res.Record.KeyVersion, "kept fields move to the new key")

	pending, err := env.services.Keys.PendingReencryptionCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	plain, err := env.services.Records.Read(ctx, "Patient", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", *plain.Fields[0].Value)
}

func TestRecordService_Apply_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.services.Records.Apply(ctx, patientCreate("p-1"))
	require.NoError(t, err)

	res, err := env.services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient", EntityID: "p-1", Action: models.ActionDelete, Actor: "dr.house",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Audit.ChangedFieldNames)
	assert.True(t, res.Audit.ContainsSensitiveData)

	_, err = env.services.Records.Read(ctx, "Patient", "p-1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestRecordService_Apply_FreeText(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.services.Records.Apply(ctx, transcriptCreate(0.95))
	require.NoError(t, err)
	assert.Empty(t, res.ReviewItems)

	plain, err := env.services.Records.Read(ctx, "Transcript", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "[NAME] was seen today", *plain.Fields[0].AnonymizedText)

	stored, err := env.storages.Records.Get(ctx, "Transcript", "t-1")
	require.NoError(t, err)
	body, _ := stored.Field("body")
	assert.True(t, body.Sensitive)
	assert.NotEmpty(t, body.Anonymized)
}

func TestRecordService_Apply_LowConfidenceQueuesReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.services.Records.Apply(ctx, transcriptCreate(0.5))
	require.NoError(t, err)
	require.Len(t, res.ReviewItems, 1)
	assert.Equal(t, "Transcript/t-1", res.ReviewItems[0].SourceRecordID)

	pending, err := env.services.Reviews.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, res.ReviewItems[0].ID, pending[0].ID)

	// registration, review item, transcript: the mutation is audited last
	log := env.auditLog(t)
	require.Len(t, log, 3)
	assert.Equal(t, "AnonymizationReviewItem", log[1].EntityName)
	assert.Equal(t, "scribe", log[1].Actor)
	assert.Equal(t, "Transcript", log[2].EntityName)
}

func TestRecordService_Apply_AnonymizationRequired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := transcriptCreate(0.95)
	req.Fields[0].AnonymizedText = nil

	_, err := env.services.Records.Apply(ctx, req)
	require.ErrorIs(t, err, ErrAnonymizationRequired)

	_, err = env.storages.Records.Get(ctx, "Transcript", "t-1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	assert.Len(t, env.auditLog(t), 1)
}

func TestRecordService_Apply_AnonymizationRequiredWithInvalidConfidence(t *testing.T) {
	env := newTestEnv(t)

	req := transcriptCreate(1.5)
	req.Fields[0].AnonymizedText = nil

	_, err := env.services.Records.Apply(context.Background(), req)
	assert.ErrorIs(t, err, ErrAnonymizationRequired)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Len(t, env.auditLog(t), 1, "only the key registration")
}

func TestRecordService_Apply_BypassRejectedAndAudited(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := transcriptCreate(0.95)
	req.DisableAnonymization = true

	_, err := env.services.Records.Apply(ctx, req)
	require.ErrorIs(t, err, ErrSecurityViolation)

	_, err = env.storages.Records.Get(ctx, "Transcript", "t-1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	log := env.auditLog(t)
	require.Len(t, log, 2)
	assert.Equal(t, models.ActionSecurityViolation, log[1].Action)
	assert.Equal(t, "scribe", log[1].Actor)
	assert.Equal(t, []string{"body"}, log[1].ChangedFieldNames)
}

// failingAudit fails every append once armed.
type failingAudit struct {
	store.AuditRepository
	fail bool
}

func (a *failingAudit) Append(ctx context.Context, rec *models.AuditRecord) error {
	if a.fail {
		return errors.New("audit table unavailable")
	}
	return a.AuditRepository.Append(ctx, rec)
}

func TestRecordService_Apply_AuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	storages := memory.NewStorages()
	audit := &failingAudit{AuditRepository: storages.Audit}
	storages.Audit = audit

	services := NewServices(storages, newMemoryProvider("k1", testKey(1)), config.StructuredConfig{Keys: testKeysConfig}, logger.Nop())
	require.NoError(t, services.Keys.Load(ctx))

	audit.fail = true
	_, err := services.Records.Apply(ctx, transcriptCreate(0.5))
	require.ErrorIs(t, err, ErrAuditWriteFailed)

	_, err = storages.Records.Get(ctx, "Transcript", "t-1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	items, err := storages.Reviews.ListByStatus(ctx, models.ReviewPending, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
