// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"time"
)

// Layout of an [EncryptedField]: nonce(12) || tag(16) || ciphertext(n).
const (
	NonceSize  = 12
	TagSize    = 16
	HeaderSize = NonceSize + TagSize
)

// EncryptedField is an authenticated ciphertext of a single field value.
// The byte layout is fixed and must stay bit-exact for existing data.
type EncryptedField []byte

// Nonce returns the 12-byte nonce portion of the field, or nil when the
// field is shorter than the fixed header.
func (f EncryptedField) Nonce() []byte {
	if len(f) < HeaderSize {
		return nil
	}
	return f[:NonceSize]
}

// Tag returns the 16-byte authentication tag portion of the field.
func (f EncryptedField) Tag() []byte {
	if len(f) < HeaderSize {
		return nil
	}
	return f[NonceSize:HeaderSize]
}

// Ciphertext returns the variable-length ciphertext following the header.
func (f EncryptedField) Ciphertext() []byte {
	if len(f) < HeaderSize {
		return nil
	}
	return f[HeaderSize:]
}

// String never renders the payload.
func (f EncryptedField) String() string {
	return fmt.Sprintf("EncryptedField(%d bytes)", len(f))
}

// KeyMaterial is raw symmetric key material. It refuses to render itself
// through fmt, zerolog or encoding/json.
type KeyMaterial []byte

const redacted = "[REDACTED]"

func (k KeyMaterial) String() string { return redacted }

// GoString keeps %#v from dumping the bytes.
func (k KeyMaterial) GoString() string { return redacted }

func (k KeyMaterial) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Wipe overwrites the material in place.
func (k KeyMaterial) Wipe() {
	for i := range k {
		k[i] = 0
	}
}

// KeyStatus is the lifecycle state of an encryption key version.
// Transitions are monotonic: Active -> Retiring -> Retired.
type KeyStatus string

const (
	KeyActive   KeyStatus = "Active"
	KeyRetiring KeyStatus = "Retiring"
	KeyRetired  KeyStatus = "Retired"
)

// EncryptionKeyVersion describes one generation of the field encryption key.
// Material is held only in memory and is never persisted with the metadata.
type EncryptionKeyVersion struct {
	ID             string      `json:"id"`
	Material       KeyMaterial `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	Status         KeyStatus   `json:"status"`
	RetentionUntil *time.Time  `json:"retention_until,omitempty"`
	UsageCount     int64       `json:"usage_count"`
}

// WithinRetention reports whether a Retiring key may still decrypt at now.
// Active keys are always within retention, Retired keys never are.
func (v EncryptionKeyVersion) WithinRetention(now time.Time) bool {
	switch v.Status {
	case KeyActive:
		return true
	case KeyRetiring:
		return v.RetentionUntil == nil || !now.After(*v.RetentionUntil)
	default:
		return false
	}
}

// RotationResult is returned by a successful key rotation.
type RotationResult struct {
	NewVersion      EncryptionKeyVersion `json:"new_version"`
	RetiringVersion EncryptionKeyVersion `json:"retiring_version"`
	RetentionWindow time.Duration        `json:"retention_window"`
}

// SweepResult summarises one pass of the re-encryption sweep.
type SweepResult struct {
	Migrated  int   `json:"migrated"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Remaining int64 `json:"remaining"`
}
