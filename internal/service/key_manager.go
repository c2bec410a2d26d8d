// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/policy"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/models"
)

// SystemActor is recorded for key changes nobody asked for, such as the
// registration of the first key.
const SystemActor = "system"

type keyEntry struct {
	version models.EncryptionKeyVersion
	usage   atomic.Int64
	flushed int64
}

func newKeyEntry(v models.EncryptionKeyVersion) *keyEntry {
	e := &keyEntry{version: v, flushed: v.UsageCount}
	e.usage.Store(v.UsageCount)
	return e
}

// metadata returns the version without material.
func (e *keyEntry) metadata() models.EncryptionKeyVersion {
	v := e.version
	v.Material = nil
	v.UsageCount = e.usage.Load()
	return v
}

type keyLifecycleManager struct {
	keys    store.KeyVersionRepository
	records store.RecordRepository
	secrets adapter.SecretProvider
	audit   ChangeAuditRecorder
	cfg     config.Keys

	// mu guards entries and activeID. It is never held while waiting for
	// the audit lane.
	mu       sync.RWMutex
	entries  map[string]*keyEntry
	activeID string

	rotateMu sync.Mutex

	opts   options
	logger *logger.Logger
}

// NewKeyLifecycleManager returns a manager that has to be loaded with
// Load before use.
func NewKeyLifecycleManager(
	keys store.KeyVersionRepository,
	records store.RecordRepository,
	secrets adapter.SecretProvider,
	audit ChangeAuditRecorder,
	cfg config.Keys,
	log *logger.Logger,
	opts ...Option,
) KeyLifecycleManager {
	log.Debug().Msg("creating key lifecycle manager")
	return &keyLifecycleManager{
		keys:    keys,
		records: records,
		secrets: secrets,
		audit:   audit,
		cfg:     cfg,
		entries: make(map[string]*keyEntry),
		opts:    newOptions(opts),
		logger:  log,
	}
}

func (m *keyLifecycleManager) Load(ctx context.Context) error {
	stored, err := m.keys.List(ctx)
	if err != nil {
		return fmt.Errorf("listing key versions: %w", err)
	}

	providerID, providerKey, err := m.secrets.ActiveKey(ctx)
	if err != nil {
		return fmt.Errorf("reading active key from secret provider: %w", err)
	}
	if err = crypto.ValidateKey(providerKey); err != nil {
		return fmt.Errorf("active key %q: %w", providerID, err)
	}

	if len(stored) == 0 {
		return m.register(ctx, providerID, providerKey)
	}

	entries := make(map[string]*keyEntry, len(stored))
	activeID := ""
	for _, v := range stored {
		if v.Status == models.KeyActive {
			activeID = v.ID
		}
		if v.Status == models.KeyRetired {
			entries[v.ID] = newKeyEntry(v)
			continue
		}

		material := providerKey
		if v.ID != providerID {
			if material, err = m.secrets.KeyByVersion(ctx, v.ID); err != nil {
				return fmt.Errorf("reading key %q from secret provider: %w", v.ID, err)
			}
			if err = crypto.ValidateKey(material); err != nil {
				return fmt.Errorf("key %q: %w", v.ID, err)
			}
		}
		v.Material = material
		entries[v.ID] = newKeyEntry(v)
	}
	if activeID == "" {
		return ErrNoActiveKey
	}

	m.mu.Lock()
	m.entries = entries
	m.activeID = activeID
	m.mu.Unlock()

	m.logger.Info().Int("versions", len(entries)).Str("active", activeID).Msg("key versions loaded")

	switch _, known := entries[providerID]; {
	case providerID == activeID:
		return nil
	case known:
		return fmt.Errorf("%w: provider active key %q is %s", ErrInvalidKeyTransition, providerID, entries[providerID].version.Status)
	default:
		// rotated at the provider; take the key over as a rotation
		m.logger.Warn().Str("key_id", providerID).Msg("adopting active key of secret provider")
		_, err = m.promote(ctx, providerID, providerKey, SystemActor)
		return err
	}
}

// register stores the very first key version.
func (m *keyLifecycleManager) register(ctx context.Context, id string, material models.KeyMaterial) error {
	v := models.EncryptionKeyVersion{
		ID:        id,
		CreatedAt: m.opts.now().UTC().Truncate(time.Microsecond),
		Status:    models.KeyActive,
	}

	err := m.audit.InTx(ctx, func(ctx context.Context) error {
		if err := m.keys.Upsert(ctx, v); err != nil {
			return err
		}
		_, err := m.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityEncryptionKeyVersion,
			EntityID:   id,
			Action:     models.ActionCreate,
			Actor:      SystemActor,
			After:      keySnapshot(v),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("registering key %q: %w", id, err)
	}

	v.Material = material
	m.mu.Lock()
	m.entries = map[string]*keyEntry{id: newKeyEntry(v)}
	m.activeID = id
	m.mu.Unlock()

	m.logger.Info().Str("key_id", id).Msg("first key version registered")
	return nil
}

func (m *keyLifecycleManager) ActiveKey(_ context.Context) (string, models.KeyMaterial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[m.activeID]
	if !ok || len(e.version.Material) == 0 {
		return "", nil, ErrNoActiveKey
	}
	return m.activeID, e.version.Material, nil
}

func (m *keyLifecycleManager) RecordUsage(id string, n int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entries[id]; ok {
		e.usage.Add(n)
	}
}

type decryptCandidate struct {
	id       string
	material models.KeyMaterial
}

func (m *keyLifecycleManager) DecryptionKeyFor(_ context.Context, field models.EncryptedField, hint string) (string, models.KeyMaterial, error) {
	id, material, _, err := m.open(field, hint)
	return id, material, err
}

func (m *keyLifecycleManager) Decrypt(_ context.Context, field models.EncryptedField, hint string) ([]byte, error) {
	_, _, plaintext, err := m.open(field, hint)
	return plaintext, err
}

// open tries the Active key, then hint, then every other key still within
// retention, newest first.
func (m *keyLifecycleManager) open(field models.EncryptedField, hint string) (string, models.KeyMaterial, []byte, error) {
	now := m.opts.now()
	candidates, hintGone := m.candidates(hint, now)

	for _, c := range candidates {
		plaintext, err := m.opts.cipher.Decrypt(field, c.material)
		if err == nil {
			return c.id, c.material, plaintext, nil
		}
	}

	if hintGone {
		m.opts.observer.DecryptionFailed("key_retired")
		return "", nil, nil, fmt.Errorf("%w: %q", ErrKeyRetired, hint)
	}
	m.opts.observer.DecryptionFailed("authentication_failed")
	return "", nil, nil, crypto.ErrAuthenticationFailed
}

func (m *keyLifecycleManager) candidates(hint string, now time.Time) ([]decryptCandidate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hintGone := false
	if e, ok := m.entries[hint]; ok && !e.version.WithinRetention(now) {
		hintGone = true
	}

	usable := func(e *keyEntry) bool {
		return e.version.WithinRetention(now) && len(e.version.Material) > 0
	}

	out := make([]decryptCandidate, 0, len(m.entries))
	added := make(map[string]struct{}, len(m.entries))
	add := func(id string) {
		if _, done := added[id]; done {
			return
		}
		if e, ok := m.entries[id]; ok && usable(e) {
			out = append(out, decryptCandidate{id: id, material: e.version.Material})
			added[id] = struct{}{}
		}
	}

	add(m.activeID)
	add(hint)

	rest := make([]*keyEntry, 0, len(m.entries))
	for _, e := range m.entries {
		rest = append(rest, e)
	}
	slices.SortFunc(rest, func(a, b *keyEntry) int {
		return b.version.CreatedAt.Compare(a.version.CreatedAt)
	})
	for _, e := range rest {
		add(e.version.ID)
	}

	return out, hintGone
}

func (m *keyLifecycleManager) Rotate(ctx context.Context, actor string) (models.RotationResult, error) {
	if actor == "" {
		return models.RotationResult{}, ErrActorRequired
	}

	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	if id, ok := m.retiringKey(); ok {
		return models.RotationResult{}, fmt.Errorf("%w: %q", ErrRotationInProgress, id)
	}

	material, err := crypto.GenerateKey()
	if err != nil {
		return models.RotationResult{}, err
	}
	id := m.opts.ids.Generate()

	// the provider is called before any transaction starts
	if err = m.secrets.PutKey(ctx, id, material); err != nil {
		material.Wipe()
		return models.RotationResult{}, fmt.Errorf("storing key at secret provider: %w", err)
	}

	return m.promote(ctx, id, material, actor)
}

func (m *keyLifecycleManager) retiringKey() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, e := range m.entries {
		if e.version.Status == models.KeyRetiring {
			return id, true
		}
	}
	return "", false
}

// promote makes the key id Active and the current Active key Retiring.
func (m *keyLifecycleManager) promote(ctx context.Context, id string, material models.KeyMaterial, actor string) (models.RotationResult, error) {
	now := m.opts.now().UTC().Truncate(time.Microsecond)
	until := now.Add(m.cfg.RetentionWindow)

	fresh := models.EncryptionKeyVersion{ID: id, CreatedAt: now, Status: models.KeyActive}

	var (
		result models.RotationResult
		undo   func()
	)
	err := m.audit.InTx(ctx, func(ctx context.Context) error {
		m.mu.RLock()
		current, ok := m.entries[m.activeID]
		m.mu.RUnlock()
		if !ok {
			return ErrNoActiveKey
		}

		before := current.metadata()
		retiring := before
		retiring.Status = models.KeyRetiring
		retiring.RetentionUntil = &until

		if err := m.keys.Upsert(ctx, retiring); err != nil {
			return err
		}
		if err := m.keys.Upsert(ctx, fresh); err != nil {
			return err
		}
		if _, err := m.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityEncryptionKeyVersion,
			EntityID:   retiring.ID,
			Action:     models.ActionUpdate,
			Actor:      actor,
			Before:     keySnapshot(before),
			After:      keySnapshot(retiring),
		}); err != nil {
			return err
		}
		if _, err := m.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityEncryptionKeyVersion,
			EntityID:   fresh.ID,
			Action:     models.ActionCreate,
			Actor:      actor,
			After:      keySnapshot(fresh),
		}); err != nil {
			return err
		}

		// switched inside the lane so that no write sealed after this
		// point uses the old key
		withMaterial := fresh
		withMaterial.Material = material
		m.mu.Lock()
		previousID := m.activeID
		current.version.Status = models.KeyRetiring
		current.version.RetentionUntil = &until
		m.entries[id] = newKeyEntry(withMaterial)
		m.activeID = id
		m.mu.Unlock()

		undo = func() {
			m.mu.Lock()
			current.version.Status = models.KeyActive
			current.version.RetentionUntil = nil
			delete(m.entries, id)
			m.activeID = previousID
			m.mu.Unlock()
		}

		result = models.RotationResult{
			NewVersion:      fresh,
			RetiringVersion: retiring,
			RetentionWindow: m.cfg.RetentionWindow,
		}
		return nil
	})
	if err != nil {
		if undo != nil {
			undo()
		}
		m.logger.Err(err).Str("func", "*keyLifecycleManager.promote").Str("key_id", id).Msg("key rotation failed")
		return models.RotationResult{}, fmt.Errorf("rotating to key %q: %w", id, err)
	}

	m.opts.observer.KeyRotated()
	m.logger.Info().
		Str("key_id", id).
		Str("retiring", result.RetiringVersion.ID).
		Time("retention_until", until).
		Msg("encryption key rotated")

	return result, nil
}

func (m *keyLifecycleManager) RotationDue(now time.Time) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[m.activeID]
	if !ok {
		return false, ""
	}
	if m.cfg.RotationInterval > 0 && now.Sub(e.version.CreatedAt) >= m.cfg.RotationInterval {
		return true, "age"
	}
	if m.cfg.UsageCeiling > 0 && e.usage.Load() >= m.cfg.UsageCeiling {
		return true, "usage"
	}
	return false, ""
}

func (m *keyLifecycleManager) PendingReencryptionCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	active := m.activeID
	m.mu.RUnlock()

	if active == "" {
		return 0, ErrNoActiveKey
	}
	return m.records.CountNotOnKey(ctx, active)
}

func (m *keyLifecycleManager) Retire(ctx context.Context, id, actor string) error {
	if actor == "" {
		return ErrActorRequired
	}

	var undo func()
	var retired *keyEntry
	err := m.audit.InTx(ctx, func(ctx context.Context) error {
		m.mu.RLock()
		e, ok := m.entries[id]
		m.mu.RUnlock()
		switch {
		case !ok:
			return fmt.Errorf("%w: %q", ErrKeyNotFound, id)
		case e.version.Status != models.KeyRetiring:
			return fmt.Errorf("%w: %q is %s", ErrInvalidKeyTransition, id, e.version.Status)
		}

		n, err := m.records.CountOnKey(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d records on key %q", ErrReencryptionPending, n, id)
		}

		before := e.metadata()
		after := before
		after.Status = models.KeyRetired

		if err = m.keys.Upsert(ctx, after); err != nil {
			return err
		}
		if _, err = m.audit.Record(ctx, models.AuditMutation{
			EntityName: policy.EntityEncryptionKeyVersion,
			EntityID:   id,
			Action:     models.ActionUpdate,
			Actor:      actor,
			Before:     keySnapshot(before),
			After:      keySnapshot(after),
		}); err != nil {
			return err
		}

		m.mu.Lock()
		e.version.Status = models.KeyRetired
		m.mu.Unlock()
		undo = func() {
			m.mu.Lock()
			e.version.Status = models.KeyRetiring
			m.mu.Unlock()
		}
		retired = e
		return nil
	})
	if err != nil {
		if undo != nil {
			undo()
		}
		return err
	}

	m.mu.Lock()
	retired.version.Material.Wipe()
	retired.version.Material = nil
	m.mu.Unlock()

	m.logger.Info().Str("key_id", id).Msg("encryption key retired")
	return nil
}

func (m *keyLifecycleManager) RetireExpired(ctx context.Context, actor string) ([]string, error) {
	now := m.opts.now()

	m.mu.RLock()
	expired := make([]string, 0)
	for id, e := range m.entries {
		if e.version.Status == models.KeyRetiring && !e.version.WithinRetention(now) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()
	slices.Sort(expired)

	retired := make([]string, 0, len(expired))
	for _, id := range expired {
		err := m.Retire(ctx, id, actor)
		switch {
		case errors.Is(err, ErrReencryptionPending):
			m.logger.Warn().Err(err).Str("key_id", id).Msg("retention expired but records remain on key")
		case err != nil:
			return retired, err
		default:
			retired = append(retired, id)
		}
	}
	return retired, nil
}

func (m *keyLifecycleManager) Versions() []models.EncryptionKeyVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.EncryptionKeyVersion, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.metadata())
	}
	slices.SortFunc(out, func(a, b models.EncryptionKeyVersion) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// FlushUsage runs on the lane so that it never overwrites a status changed
// by a concurrent rotation.
func (m *keyLifecycleManager) FlushUsage(ctx context.Context) error {
	type flush struct {
		entry *keyEntry
		count int64
	}
	var done []flush

	err := m.audit.InTx(ctx, func(ctx context.Context) error {
		m.mu.RLock()
		pending := make([]*keyEntry, 0, len(m.entries))
		for _, e := range m.entries {
			if e.usage.Load() != e.flushed {
				pending = append(pending, e)
			}
		}
		m.mu.RUnlock()

		for _, e := range pending {
			v := e.metadata()
			if err := m.keys.Upsert(ctx, v); err != nil {
				return err
			}
			done = append(done, flush{entry: e, count: v.UsageCount})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flushing key usage: %w", err)
	}

	m.mu.Lock()
	for _, f := range done {
		f.entry.flushed = f.count
	}
	m.mu.Unlock()
	return nil
}

// keySnapshot describes key metadata for the audit trail.
func keySnapshot(v models.EncryptionKeyVersion) []models.FieldSnapshot {
	status := string(v.Status)
	created := strconv.FormatInt(v.CreatedAt.UnixMicro(), 10)

	var until *string
	if v.RetentionUntil != nil {
		s := strconv.FormatInt(v.RetentionUntil.UnixMicro(), 10)
		until = &s
	}

	return []models.FieldSnapshot{
		{Name: "created_at", Value: &created},
		{Name: "retention_until", Value: until},
		{Name: "status", Value: &status},
	}
}
