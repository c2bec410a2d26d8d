// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package memory is an in-process backend implementing the repositories of
// package store. A transaction holds the store lock for its whole duration
// and restores the previous state when it fails, so transactions are
// serialisable and atomic.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/models"
)

type recordKey struct {
	entity string
	id     string
}

type state struct {
	records map[recordKey]models.ProtectedRecord
	audit   []models.AuditRecord
	reviews map[string]models.ReviewItem
	keys    map[string]models.EncryptionKeyVersion
}

func (s state) clone() state {
	c := state{
		records: make(map[recordKey]models.ProtectedRecord, len(s.records)),
		audit:   slices.Clone(s.audit),
		reviews: make(map[string]models.ReviewItem, len(s.reviews)),
		keys:    make(map[string]models.EncryptionKeyVersion, len(s.keys)),
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	return c
}

// Store holds every table in memory. Stored values are copied on the way in
// and out, so callers never share slices with the store.
type Store struct {
	mu sync.Mutex
	st state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: state{}.clone()}
}

// NewStorages returns the repositories of a fresh in-memory store.
func NewStorages() *store.Storages {
	return New().Storages()
}

// Storages exposes s through the repository interfaces.
func (s *Store) Storages() *store.Storages {
	return &store.Storages{
		Transactor: s,
		Records:    &recordRepository{s},
		Audit:      &auditRepository{s},
		Reviews:    &reviewRepository{s},
		Keys:       &keyRepository{s},
	}
}

type txKey struct{}

// WithinTx runs fn with the store locked. The state before the call is
// restored when fn fails or ctx is done by the time fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	err := fn(context.WithValue(ctx, txKey{}, s))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.st = snapshot
		return err
	}

	return nil
}

// lock acquires the store lock unless ctx already runs inside a transaction
// of s. The returned function releases it.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func cloneRecord(r models.ProtectedRecord) models.ProtectedRecord {
	fields := make([]models.StoredField, len(r.Fields))
	for i, f := range r.Fields {
		f.Value = slices.Clone(f.Value)
		f.Anonymized = slices.Clone(f.Anonymized)
		fields[i] = f
	}
	r.Fields = fields
	return r
}

func cloneAudit(r models.AuditRecord) models.AuditRecord {
	r.ChangedFieldNames = slices.Clone(r.ChangedFieldNames)
	if r.ChangedFieldNames == nil {
		r.ChangedFieldNames = []string{}
	}
	return r
}

func cloneReview(i models.ReviewItem) models.ReviewItem {
	i.DetectedSpans = slices.Clone(i.DetectedSpans)
	if i.ReviewedAt != nil {
		t := *i.ReviewedAt
		i.ReviewedAt = &t
	}
	return i
}
