// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyRetired is returned when the only key able to decrypt a field is
	// Retired or past its retention window. It is distinct from
	// crypto.ErrAuthenticationFailed, which means the data was tampered with.
	ErrKeyRetired = errors.New("encryption key is retired")

	// ErrNoActiveKey is returned when no key material is loaded. At startup
	// it is a fatal configuration error.
	ErrNoActiveKey = errors.New("no active encryption key")

	ErrKeyNotFound          = errors.New("encryption key version not found")
	ErrRotationInProgress   = errors.New("a key is still retiring, rotation is in progress")
	ErrReencryptionPending  = errors.New("records are still encrypted with this key")
	ErrInvalidKeyTransition = errors.New("invalid key status transition")

	// ErrAnonymizationRequired rejects free text without an anonymized variant.
	ErrAnonymizationRequired = errors.New("anonymized text is required for free-text content")

	// ErrSecurityViolation rejects an attempt to bypass anonymization. The
	// attempt is always recorded in the audit trail.
	ErrSecurityViolation = errors.New("security violation: anonymization cannot be disabled")

	ErrInvalidTransition     = errors.New("invalid review status transition")
	ErrJustificationRequired = errors.New("justification is required to whitelist")
	ErrConfidenceRequired    = errors.New("a new confidence score is required to re-queue")

	// ErrAuditWriteFailed aborts the enclosing transaction.
	ErrAuditWriteFailed = errors.New("audit write failed")

	ErrChainBroken     = errors.New("audit chain is broken")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrActorRequired   = errors.New("actor is required")
	ErrInvalidMutation = errors.New("invalid audit mutation")
)

// ChainError locates the first audit record that breaks the chain.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s at seq %d: %s", ErrChainBroken, e.Seq, e.Reason)
}

func (e *ChainError) Unwrap() error {
	return ErrChainBroken
}
