// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "github.com/MKhiriev/phi-guard/models"

// FieldCipher seals and opens individual field values with AES-256-GCM.
//
// Output layout is fixed: nonce(12) || tag(16) || ciphertext(n). No
// associated data is bound. The cipher holds no key; callers pass the key
// material for every call, so one FieldCipher serves every key version.
type FieldCipher interface {
	// Encrypt seals plaintext under key. An empty plaintext yields a
	// 28-byte payload. Fails with [ErrInvalidKeyLength] for keys that are
	// not exactly 32 bytes.
	Encrypt(plaintext []byte, key models.KeyMaterial) (models.EncryptedField, error)

	// Decrypt opens field with key. Any corruption, a wrong key or a
	// truncated payload fails with [ErrAuthenticationFailed].
	Decrypt(field models.EncryptedField, key models.KeyMaterial) ([]byte, error)
}
