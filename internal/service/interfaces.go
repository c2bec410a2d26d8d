// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"time"

	"github.com/MKhiriev/phi-guard/models"
)

// KeyLifecycleManager owns the encryption key versions. Key material is read
// from the secret provider outside any transaction and kept in memory.
type KeyLifecycleManager interface {
	// Load reads key metadata and fetches material for every key that can
	// still decrypt. It must succeed before any other call.
	Load(ctx context.Context) error

	// ActiveKey returns the only key used for new encryption.
	ActiveKey(ctx context.Context) (string, models.KeyMaterial, error)
	// RecordUsage adds n encryptions to the usage counter of key id.
	RecordUsage(id string, n int64)

	// DecryptionKeyFor returns the key that authenticates field, trying the
	// Active key first and then every key still within retention.
	DecryptionKeyFor(ctx context.Context, field models.EncryptedField, hint string) (string, models.KeyMaterial, error)
	// Decrypt opens field with the key found by DecryptionKeyFor.
	Decrypt(ctx context.Context, field models.EncryptedField, hint string) ([]byte, error)

	// Rotate generates a new key, stores it at the secret provider and makes
	// it Active. The previous Active key becomes Retiring.
	Rotate(ctx context.Context, actor string) (models.RotationResult, error)
	// RotationDue evaluates the advisory age and usage triggers.
	RotationDue(now time.Time) (bool, string)
	// PendingReencryptionCount counts records not yet on the Active key.
	PendingReencryptionCount(ctx context.Context) (int64, error)
	// Sweep re-encrypts records onto the Active key, batch records per page.
	Sweep(ctx context.Context, batch int) (models.SweepResult, error)
	// Retire moves a Retiring key with no records left to Retired and
	// wipes its material.
	Retire(ctx context.Context, id, actor string) error
	// RetireExpired retires every Retiring key past its retention window
	// that no record uses any more.
	RetireExpired(ctx context.Context, actor string) ([]string, error)

	// Versions lists key metadata without material.
	Versions() []models.EncryptionKeyVersion
	// FlushUsage persists the in-memory usage counters.
	FlushUsage(ctx context.Context) error
}

// ChangeAuditRecorder appends hash-chained audit records.
type ChangeAuditRecorder interface {
	// InTx runs fn in one transaction on the audit chain lane. Mutations
	// audited with Record inside fn commit together with their records.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Record appends the audit record of m. Outside InTx it opens its own
	// transaction.
	Record(ctx context.Context, m models.AuditMutation) (*models.AuditRecord, error)

	Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error)
	// Verify walks the whole chain. A broken chain returns a [*ChainError].
	Verify(ctx context.Context) (models.ChainVerification, error)
	Statistics(ctx context.Context) (models.AuditStatistics, error)
}

// AnonymizationGuard enforces that free text is only persisted anonymized.
type AnonymizationGuard interface {
	// Validate accepts or rejects one free-text submission. A low confidence
	// still accepts but returns a Pending review item to enqueue.
	Validate(ctx context.Context, s models.Submission) (models.GuardDecision, error)
	// RejectBypass audits an attempt to disable anonymization and returns
	// [ErrSecurityViolation].
	RejectBypass(ctx context.Context, entityName, entityID, actor string, fields []string) error
}

// ReviewQueue is the state machine of anonymization review items.
type ReviewQueue interface {
	// Enqueue stores a new Pending item and audits its creation.
	Enqueue(ctx context.Context, item models.ReviewItem) (*models.ReviewItem, error)
	Get(ctx context.Context, id string) (*models.ReviewItem, error)
	ListPending(ctx context.Context, limit uint64) ([]models.ReviewItem, error)
	List(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error)
	// Transition moves an item and audits the move. Invalid transitions
	// return [ErrInvalidTransition] and change nothing.
	Transition(ctx context.Context, req models.TransitionRequest) (*models.ReviewItem, error)
}

// RecordService is the write path: guard, encrypt, persist and audit.
type RecordService interface {
	Apply(ctx context.Context, req models.MutationRequest) (*models.MutationResult, error)
	Read(ctx context.Context, entityName, entityID string) (*models.PlainRecord, error)
}
