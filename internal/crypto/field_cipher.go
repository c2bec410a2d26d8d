// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/MKhiriev/phi-guard/models"
)

// KeySize is the only accepted key length in bytes (AES-256).
const KeySize = 32

// fieldCipher is the private implementation of [FieldCipher].
type fieldCipher struct {
	random io.Reader
}

// NewFieldCipher returns a [FieldCipher] drawing nonces from crypto/rand.
func NewFieldCipher() FieldCipher {
	return &fieldCipher{random: rand.Reader}
}

// Encrypt implements [FieldCipher]. crypto/cipher's GCM returns
// ciphertext || tag; the tag is moved in front of the ciphertext to keep
// the stored layout nonce || tag || ciphertext.
func (c *fieldCipher) Encrypt(plaintext []byte, key models.KeyMaterial) (models.EncryptedField, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandomSource, err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - models.TagSize

	out := make([]byte, 0, models.HeaderSize+ctLen)
	out = append(out, nonce...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)

	return out, nil
}

// Decrypt implements [FieldCipher].
func (c *fieldCipher) Decrypt(field models.EncryptedField, key models.KeyMaterial) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(field) < models.HeaderSize {
		return nil, ErrAuthenticationFailed
	}

	sealed := make([]byte, 0, len(field)-models.NonceSize)
	sealed = append(sealed, field.Ciphertext()...)
	sealed = append(sealed, field.Tag()...)

	plaintext, err := gcm.Open(nil, field.Nonce(), sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

func newGCM(key models.KeyMaterial) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, models.TagSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}
