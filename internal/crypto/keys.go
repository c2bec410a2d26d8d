// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/MKhiriev/phi-guard/models"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for passphrase-sourced keys (OWASP 2024):
// 1 iteration, 64 MiB, 4 threads, 32-byte output.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
)

// GenerateKey reads [KeySize] bytes from the OS CSPRNG.
func GenerateKey() (models.KeyMaterial, error) {
	return generateKey(rand.Reader)
}

func generateKey(r io.Reader) (models.KeyMaterial, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandomSource, err)
	}
	return key, nil
}

// ValidateKey fails with [ErrInvalidKeyLength] unless key is exactly 32 bytes.
func ValidateKey(key models.KeyMaterial) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	return nil
}

// ParseKey decodes a standard base64 key and validates its length.
func ParseKey(encoded string) (models.KeyMaterial, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyEncoding, err)
	}
	if err := ValidateKey(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// EncodeKey is the inverse of [ParseKey].
func EncodeKey(key models.KeyMaterial) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DeriveKey derives a 256-bit key from passphrase and salt using Argon2id.
// The same inputs always produce the same key.
func DeriveKey(passphrase string, salt []byte) models.KeyMaterial {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
}
