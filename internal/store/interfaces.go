// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"

	"github.com/MKhiriev/phi-guard/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// Transactor opens the ACID transaction a mutation and its audit record
// share. Repositories joined through the context either all commit or none.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RecordRepository persists protected records.
type RecordRepository interface {
	// Get returns [ErrRecordNotFound] when the record does not exist.
	Get(ctx context.Context, entityName, entityID string) (*models.ProtectedRecord, error)
	// Insert returns [ErrRecordExists] for a duplicate entity.
	Insert(ctx context.Context, rec *models.ProtectedRecord) error
	// Update stores rec when the stored version equals expectedVersion.
	Update(ctx context.Context, rec *models.ProtectedRecord, expectedVersion int64) error
	// Delete removes the record when the stored version equals expectedVersion.
	Delete(ctx context.Context, entityName, entityID string, expectedVersion int64) error

	// ListNotOnKey pages through records holding encrypted fields sealed by
	// any key other than keyID, ordered by entity name and id after cursor.
	ListNotOnKey(ctx context.Context, keyID string, after models.RecordRef, limit uint64) ([]models.ProtectedRecord, error)
	// CountNotOnKey counts the records ListNotOnKey would return.
	CountNotOnKey(ctx context.Context, keyID string) (int64, error)
	// CountOnKey counts records still sealed by keyID.
	CountOnKey(ctx context.Context, keyID string) (int64, error)
	// Reseal rewrites fields and key version only while the stored key
	// version is still oldKey and the stored version equals rec.Version.
	// It reports whether the row was rewritten.
	Reseal(ctx context.Context, rec *models.ProtectedRecord, oldKey string) (bool, error)
}

// AuditRepository is the append-only store of the audit chain.
type AuditRepository interface {
	// Lock serialises chain appends across processes for the rest of the
	// transaction in ctx.
	Lock(ctx context.Context) error
	// Last returns the tail of the chain, or nil for an empty chain.
	Last(ctx context.Context) (*models.AuditRecord, error)
	// Append returns [ErrChainConflict] when seq or previous hash is taken.
	Append(ctx context.Context, rec *models.AuditRecord) error
	// Query returns matching records in chain order.
	Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error)
	Statistics(ctx context.Context) (models.AuditStatistics, error)
}

// ReviewRepository stores anonymization review items.
type ReviewRepository interface {
	Create(ctx context.Context, item *models.ReviewItem) error
	// Get returns [ErrReviewItemNotFound] for an unknown id.
	Get(ctx context.Context, id string) (*models.ReviewItem, error)
	// Update stores item when its stored status still equals expected.
	Update(ctx context.Context, item *models.ReviewItem, expected models.ReviewStatus) error
	// ListByStatus returns items in creation order. A zero limit means all.
	ListByStatus(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error)
}

// KeyVersionRepository stores key metadata. Key material never reaches it.
type KeyVersionRepository interface {
	List(ctx context.Context) ([]models.EncryptionKeyVersion, error)
	Upsert(ctx context.Context, v models.EncryptionKeyVersion) error
}
