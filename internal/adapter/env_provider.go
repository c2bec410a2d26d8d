// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/models"
)

// envSecretProvider serves keys parsed once from the environment. It cannot
// persist new keys: operators rotate by changing SECRETS_ACTIVE_KEY(_ID) and
// moving the old key into SECRETS_PREVIOUS_KEYS.
type envSecretProvider struct {
	activeID string
	keys     map[string]models.KeyMaterial
}

// NewEnvSecretProvider parses cfg. An active key is taken from ActiveKey, or
// derived from Passphrase and Salt with Argon2id when ActiveKey is empty.
func NewEnvSecretProvider(cfg config.Secrets) (SecretProvider, error) {
	if cfg.ActiveKeyID == "" {
		return nil, fmt.Errorf("%w: empty active key id", ErrInvalidKeyEntry)
	}

	var active models.KeyMaterial
	switch {
	case cfg.ActiveKey != "":
		key, err := crypto.ParseKey(cfg.ActiveKey)
		if err != nil {
			return nil, fmt.Errorf("active key %q: %w", cfg.ActiveKeyID, err)
		}
		active = key
	case cfg.Passphrase != "" && cfg.Salt != "":
		active = crypto.DeriveKey(cfg.Passphrase, []byte(cfg.Salt))
	default:
		return nil, fmt.Errorf("%w: no active key material", ErrKeyNotFound)
	}

	keys, err := parseKeyList(cfg.PreviousKeys)
	if err != nil {
		return nil, err
	}
	keys[cfg.ActiveKeyID] = active

	return &envSecretProvider{activeID: cfg.ActiveKeyID, keys: keys}, nil
}

// parseKeyList parses "id=base64,id=base64".
func parseKeyList(raw string) (map[string]models.KeyMaterial, error) {
	keys := make(map[string]models.KeyMaterial)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, encoded, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: %q is not id=base64", ErrInvalidKeyEntry, id)
		}

		key, err := crypto.ParseKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("previous key %q: %w", id, err)
		}
		keys[id] = key
	}
	return keys, nil
}

func (p *envSecretProvider) ActiveKey(ctx context.Context) (string, models.KeyMaterial, error) {
	return p.activeID, p.keys[p.activeID], nil
}

func (p *envSecretProvider) KeyByVersion(ctx context.Context, id string) (models.KeyMaterial, error) {
	key, ok := p.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return key, nil
}

func (p *envSecretProvider) PutKey(ctx context.Context, id string, key models.KeyMaterial) error {
	return ErrReadOnlyProvider
}
