// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter connects phi-guard to the external source of key material.
//
// [SecretProvider] is the only abstraction. Three implementations ship:
// environment variables (read-only), a local JSON keyring file, and an HTTP
// secret store reached through resty. Key material is fetched by the key
// lifecycle manager outside of any database transaction.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] regardless of provider.
package adapter

import (
	"context"

	"github.com/MKhiriev/phi-guard/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/secret_provider_mock.go -package=mock

// SecretProvider is the external secret store holding raw key material.
type SecretProvider interface {
	// ActiveKey returns the id and material of the key the provider
	// considers current.
	ActiveKey(ctx context.Context) (string, models.KeyMaterial, error)

	// KeyByVersion returns the material of key id, or [ErrKeyNotFound].
	KeyByVersion(ctx context.Context, id string) (models.KeyMaterial, error)

	// PutKey stores a newly generated key and makes it the provider's
	// active key. Read-only providers return [ErrReadOnlyProvider].
	PutKey(ctx context.Context, id string, key models.KeyMaterial) error
}
