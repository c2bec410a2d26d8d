// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/models"
)

// keyringFile is the on-disk layout of the keyring. Keys are base64.
type keyringFile struct {
	Active string            `json:"active"`
	Keys   map[string]string `json:"keys"`
}

// fileSecretProvider keeps key material in a 0600 JSON file. Writes go to a
// temporary file in the same directory and are renamed into place.
type fileSecretProvider struct {
	path string

	mu   sync.RWMutex
	ring keyringFile

	logger *logger.Logger
}

// NewFileSecretProvider loads the keyring at path. A missing file is an
// empty keyring; ActiveKey then fails until a key is put.
func NewFileSecretProvider(path string, log *logger.Logger) (SecretProvider, error) {
	p := &fileSecretProvider{path: path, ring: keyringFile{Keys: map[string]string{}}, logger: log}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *fileSecretProvider) load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read keyring file: %w", err)
	}

	var ring keyringFile
	if err = json.Unmarshal(data, &ring); err != nil {
		return fmt.Errorf("decode keyring file: %w", err)
	}
	if ring.Keys == nil {
		ring.Keys = map[string]string{}
	}
	for id, encoded := range ring.Keys {
		if _, err := crypto.ParseKey(encoded); err != nil {
			return fmt.Errorf("keyring entry %q: %w", id, err)
		}
	}

	p.ring = ring
	return nil
}

func (p *fileSecretProvider) persist(ring keyringFile) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create keyring dir: %w", err)
	}

	payload, err := json.MarshalIndent(ring, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keyring-*")
	if err != nil {
		return fmt.Errorf("create keyring temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = tmp.Chmod(0o600); err == nil {
		_, err = tmp.Write(payload)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write keyring temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("replace keyring file: %w", err)
	}
	return nil
}

func (p *fileSecretProvider) ActiveKey(ctx context.Context) (string, models.KeyMaterial, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ring.Active == "" {
		return "", nil, fmt.Errorf("%w: keyring has no active key", ErrKeyNotFound)
	}
	key, err := p.lookup(p.ring.Active)
	if err != nil {
		return "", nil, err
	}
	return p.ring.Active, key, nil
}

func (p *fileSecretProvider) KeyByVersion(ctx context.Context, id string) (models.KeyMaterial, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lookup(id)
}

func (p *fileSecretProvider) lookup(id string) (models.KeyMaterial, error) {
	encoded, ok := p.ring.Keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return crypto.ParseKey(encoded)
}

func (p *fileSecretProvider) PutKey(ctx context.Context, id string, key models.KeyMaterial) error {
	if id == "" {
		return fmt.Errorf("%w: empty key id", ErrInvalidKeyEntry)
	}
	if err := crypto.ValidateKey(key); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.ring.Keys[id]; exists {
		return fmt.Errorf("%w: key %s already exists", ErrConflict, id)
	}

	next := keyringFile{Active: id, Keys: make(map[string]string, len(p.ring.Keys)+1)}
	for k, v := range p.ring.Keys {
		next.Keys[k] = v
	}
	next.Keys[id] = crypto.EncodeKey(key)

	if err := p.persist(next); err != nil {
		return err
	}
	p.ring = next

	p.logger.Info().Str("func", "fileSecretProvider.PutKey").Str("key_id", id).Msg("key added to keyring")
	return nil
}
