// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"time"

	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/utils"
)

// Option customises the runtime dependencies shared by every component.
type Option func(*options)

type options struct {
	now      func() time.Time
	ids      utils.IDGenerator
	cipher   crypto.FieldCipher
	observer Observer
}

func newOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		ids:      utils.NewUUIDGenerator(),
		cipher:   crypto.NewFieldCipher(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(ids utils.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithCipher replaces the AES-256-GCM field cipher.
func WithCipher(c crypto.FieldCipher) Option {
	return func(o *options) { o.cipher = c }
}

// WithObserver reports domain events, for example to Prometheus.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Observer receives domain events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	MutationApplied(entity string, action string)
	AuditAppended(sensitive bool)
	ReviewItemQueued()
	ReviewTransitioned(from, to string)
	SecurityViolation()
	KeyRotated()
	RecordsResealed(migrated, failed int)
	DecryptionFailed(reason string)
}

type nopObserver struct{}

func (nopObserver) MutationApplied(string, string)    {}
func (nopObserver) AuditAppended(bool)                {}
func (nopObserver) ReviewItemQueued()                 {}
func (nopObserver) ReviewTransitioned(string, string) {}
func (nopObserver) SecurityViolation()                {}
func (nopObserver) KeyRotated()                       {}
func (nopObserver) RecordsResealed(int, int)          {}
func (nopObserver) DecryptionFailed(string)           {}
