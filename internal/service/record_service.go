// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/internal/validators"
	"github.com/MKhiriev/phi-guard/models"
)

type recordService struct {
	records   store.RecordRepository
	keys      KeyLifecycleManager
	audit     ChangeAuditRecorder
	guard     AnonymizationGuard
	reviews   ReviewQueue
	validator validators.Validator

	opts   options
	logger *logger.Logger
}

func NewRecordService(
	records store.RecordRepository,
	keys KeyLifecycleManager,
	audit ChangeAuditRecorder,
	guard AnonymizationGuard,
	reviews ReviewQueue,
	validator validators.Validator,
	log *logger.Logger,
	opts ...Option,
) RecordService {
	log.Debug().Msg("creating record service")
	return &recordService{
		records:   records,
		keys:      keys,
		audit:     audit,
		guard:     guard,
		reviews:   reviews,
		validator: validator,
		opts:      newOptions(opts),
		logger:    log,
	}
}

// Apply runs one mutation. Guarding happens before the transaction; key
// lookup, encryption, the write, review items and the audit record all
// happen inside it, the audit record last.
func (s *recordService) Apply(ctx context.Context, req models.MutationRequest) (*models.MutationResult, error) {
	if req.Actor == "" {
		req.Actor, _ = utils.GetActorFromContext(ctx)
	}
	fields, err := withLookupHashes(req.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Fields = fields
	if err = s.validator.Validate(ctx, req); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		if name, ok := missingAnonymization(req); ok {
			err = errors.Join(fmt.Errorf("%w: field %q", ErrAnonymizationRequired, name), err)
		}
		return nil, err
	}

	if req.DisableAnonymization {
		names := make([]string, 0, len(req.Fields))
		for _, f := range req.Fields {
			names = append(names, f.Name)
		}
		return nil, s.guard.RejectBypass(ctx, req.EntityName, req.EntityID, req.Actor, names)
	}

	pending, err := s.guardFreeText(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx = utils.WithActor(ctx, req.Actor)

	var (
		result = &models.MutationResult{}
		usedID string
		used   int64
	)
	err = s.audit.InTx(ctx, func(ctx context.Context) error {
		prior, err := s.records.Get(ctx, req.EntityName, req.EntityID)
		if errors.Is(err, store.ErrRecordNotFound) {
			prior = nil
		} else if err != nil {
			return err
		}

		var w write
		switch req.Action {
		case models.ActionCreate:
			w, err = s.create(ctx, req, prior)
		case models.ActionUpdate:
			w, err = s.update(ctx, req, prior)
		case models.ActionDelete:
			w, err = s.delete(ctx, req, prior)
		default:
			return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
		}
		if err != nil {
			return err
		}
		if w.noop {
			result.Record = prior
			return nil
		}

		for _, item := range pending {
			queued, err := s.reviews.Enqueue(ctx, item)
			if err != nil {
				return err
			}
			result.ReviewItems = append(result.ReviewItems, *queued)
		}

		if result.Audit, err = s.audit.Record(ctx, w.mutation); err != nil {
			return err
		}
		result.Record = w.record
		usedID, used = w.keyID, w.encryptions
		return nil
	})
	if err != nil {
		return nil, err
	}

	if used > 0 {
		s.keys.RecordUsage(usedID, used)
	}
	if result.Audit != nil {
		s.opts.observer.MutationApplied(req.EntityName, string(req.Action))
	}

	return result, nil
}

// guardFreeText validates every free-text field and returns the review
// items to enqueue with the mutation.
func (s *recordService) guardFreeText(ctx context.Context, req models.MutationRequest) ([]models.ReviewItem, error) {
	source := models.SourceRecordID(req.EntityName, req.EntityID)
	var pending []models.ReviewItem

	for _, in := range req.Fields {
		if !in.FreeText {
			continue
		}
		decision, err := s.guard.Validate(ctx, models.Submission{
			SourceRecordID: source,
			FieldName:      in.Name,
			RawText:        in.Value,
			AnonymizedText: in.AnonymizedText,
			Confidence:     in.Confidence,
			DetectedSpans:  in.DetectedSpans,
			Actor:          req.Actor,
		})
		if err != nil {
			return nil, err
		}
		if decision.ReviewItem != nil {
			pending = append(pending, *decision.ReviewItem)
		}
	}

	return pending, nil
}

// missingAnonymization returns the first free-text field that carries raw
// text without an anonymized variant.
func missingAnonymization(req models.MutationRequest) (string, bool) {
	for _, in := range req.Fields {
		if in.FreeText && anonymizationMissing(models.Submission{RawText: in.Value, AnonymizedText: in.AnonymizedText}) {
			return in.Name, true
		}
	}
	return "", false
}

// write is the outcome of one mutation inside the transaction.
type write struct {
	record      *models.ProtectedRecord
	mutation    models.AuditMutation
	keyID       string
	encryptions int64
	noop        bool
}

func (s *recordService) create(ctx context.Context, req models.MutationRequest, prior *models.ProtectedRecord) (write, error) {
	if prior != nil {
		return write{}, fmt.Errorf("%w: %s", store.ErrRecordExists, prior.SourceID())
	}

	keyID, seal, err := s.activeSeal(ctx)
	if err != nil {
		return write{}, err
	}

	fields := make([]models.StoredField, 0, len(req.Fields))
	var n int64
	for _, in := range req.Fields {
		f, sealed, err := sealInput(in, seal)
		if err != nil {
			return write{}, err
		}
		fields = append(fields, f)
		n += sealed
	}
	sortFields(fields)

	now := s.opts.now().UTC().Truncate(time.Microsecond)
	rec := &models.ProtectedRecord{
		EntityName: req.EntityName,
		EntityID:   req.EntityID,
		Version:    1,
		Fields:     fields,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.HasEncryptedFields() {
		rec.KeyVersion = keyID
	}

	if err = s.records.Insert(ctx, rec); err != nil {
		return write{}, err
	}

	return write{
		record:      rec,
		mutation:    mutationOf(req, nil, inputSnapshots(req.Fields)),
		keyID:       keyID,
		encryptions: n,
	}, nil
}

func (s *recordService) update(ctx context.Context, req models.MutationRequest, prior *models.ProtectedRecord) (write, error) {
	if prior == nil {
		return write{}, fmt.Errorf("%w: %s", store.ErrRecordNotFound, models.SourceRecordID(req.EntityName, req.EntityID))
	}

	keyID, seal, err := s.activeSeal(ctx)
	if err != nil {
		return write{}, err
	}
	open := func(f models.EncryptedField) ([]byte, error) {
		return s.keys.Decrypt(ctx, f, prior.KeyVersion)
	}

	before := make([]models.FieldSnapshot, 0, len(prior.Fields))
	kept := make(map[string]models.StoredField, len(prior.Fields))
	for _, f := range prior.Fields {
		plain, err := openField(f, open)
		if err != nil {
			return write{}, fmt.Errorf("opening field %q: %w", f.Name, err)
		}
		before = append(before, plainSnapshot(plain))
		kept[f.Name] = f
	}

	var n int64
	incoming := make(map[string]struct{}, len(req.Fields))
	fields := make([]models.StoredField, 0, len(prior.Fields)+len(req.Fields))
	for _, in := range req.Fields {
		f, sealed, err := sealInput(in, seal)
		if err != nil {
			return write{}, err
		}
		fields = append(fields, f)
		incoming[in.Name] = struct{}{}
		n += sealed
	}

	after := inputSnapshots(req.Fields)
	for _, snap := range before {
		if _, replaced := incoming[snap.Name]; !replaced {
			after = append(after, snap)
		}
	}

	mutation := mutationOf(req, before, after)
	if len(Diff(mutation)) == 0 {
		return write{noop: true}, nil
	}

	// kept fields move to the Active key with the rest of the record
	for name, f := range kept {
		if _, replaced := incoming[name]; replaced {
			continue
		}
		if prior.KeyVersion != keyID {
			resealed, sealed, err := resealFields([]models.StoredField{f}, open, seal)
			if err != nil {
				return write{}, fmt.Errorf("re-sealing field %q: %w", name, err)
			}
			f = resealed[0]
			n += sealed
		}
		fields = append(fields, f)
	}
	sortFields(fields)

	rec := *prior
	rec.Fields = fields
	rec.Version = prior.Version + 1
	rec.UpdatedAt = s.opts.now().UTC().Truncate(time.Microsecond)
	rec.KeyVersion = ""
	if rec.HasEncryptedFields() {
		rec.KeyVersion = keyID
	}

	if err = s.records.Update(ctx, &rec, prior.Version); err != nil {
		return write{}, err
	}

	return write{record: &rec, mutation: mutation, keyID: keyID, encryptions: n}, nil
}

// delete never decrypts: a record whose key is gone can still be deleted.
func (s *recordService) delete(ctx context.Context, req models.MutationRequest, prior *models.ProtectedRecord) (write, error) {
	if prior == nil {
		return write{}, fmt.Errorf("%w: %s", store.ErrRecordNotFound, models.SourceRecordID(req.EntityName, req.EntityID))
	}

	before := make([]models.FieldSnapshot, 0, len(prior.Fields))
	for _, f := range prior.Fields {
		before = append(before, models.FieldSnapshot{Name: f.Name, Sensitive: f.Sensitive})
	}

	if err := s.records.Delete(ctx, prior.EntityName, prior.EntityID, prior.Version); err != nil {
		return write{}, err
	}

	return write{record: prior, mutation: mutationOf(req, before, nil)}, nil
}

func (s *recordService) activeSeal(ctx context.Context) (string, sealFunc, error) {
	keyID, material, err := s.keys.ActiveKey(ctx)
	if err != nil {
		return "", nil, err
	}
	return keyID, func(p []byte) (models.EncryptedField, error) {
		return s.opts.cipher.Encrypt(p, material)
	}, nil
}

func (s *recordService) Read(ctx context.Context, entityName, entityID string) (*models.PlainRecord, error) {
	rec, err := s.records.Get(ctx, entityName, entityID)
	if err != nil {
		return nil, err
	}

	open := func(f models.EncryptedField) ([]byte, error) {
		return s.keys.Decrypt(ctx, f, rec.KeyVersion)
	}

	fields := make([]models.PlainField, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		plain, err := openField(f, open)
		if err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "*recordService.Read").
				Str("entity", entityName).
				Str("field", f.Name).
				Msg("failed to decrypt field")
			return nil, fmt.Errorf("opening field %q: %w", f.Name, err)
		}
		fields = append(fields, plain)
	}

	return &models.PlainRecord{
		EntityName: rec.EntityName,
		EntityID:   rec.EntityID,
		Version:    rec.Version,
		KeyVersion: rec.KeyVersion,
		Fields:     fields,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func mutationOf(req models.MutationRequest, before, after []models.FieldSnapshot) models.AuditMutation {
	return models.AuditMutation{
		EntityName: req.EntityName,
		EntityID:   req.EntityID,
		Action:     req.Action,
		Actor:      req.Actor,
		Before:     before,
		After:      after,
	}
}

func inputSnapshots(inputs []models.FieldInput) []models.FieldSnapshot {
	out := make([]models.FieldSnapshot, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, models.FieldSnapshot{
			Name:      in.Name,
			Value:     diffValue(in.Value, in.FreeText, in.AnonymizedText),
			Sensitive: in.IsSensitive(),
			FreeText:  in.FreeText,
		})
	}
	return out
}

func plainSnapshot(p models.PlainField) models.FieldSnapshot {
	return models.FieldSnapshot{
		Name:      p.Name,
		Value:     diffValue(p.Value, p.FreeText, p.AnonymizedText),
		Sensitive: p.Sensitive || p.FreeText,
		FreeText:  p.FreeText,
	}
}

// diffValue folds the anonymized variant into the value of free text,
// so that a new anonymization alone is a change. Snapshot values only
// feed the diff and never reach the audit store.
func diffValue(value *string, freeText bool, anonymized *string) *string {
	if value == nil || !freeText || anonymized == nil {
		return value
	}
	v := *value + "\x00" + *anonymized
	return &v
}
