// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/validators"
)

type Services struct {
	Audit   ChangeAuditRecorder
	Keys    KeyLifecycleManager
	Guard   AnonymizationGuard
	Reviews ReviewQueue
	Records RecordService
}

// NewServices wires every component to one backend. Keys.Load has to
// succeed before the services are used.
func NewServices(storages *store.Storages, secrets adapter.SecretProvider, cfg config.StructuredConfig, logger *logger.Logger, opts ...Option) *Services {
	validator := validators.NewRequestValidator()

	audit := NewChangeAuditRecorder(storages.Transactor, storages.Audit, logger, opts...)
	keys := NewKeyLifecycleManager(storages.Keys, storages.Records, secrets, audit, cfg.Keys, logger, opts...)
	guard := NewAnonymizationGuard(audit, validator, logger, opts...)
	reviews := NewReviewQueue(storages.Reviews, audit, validator, logger, opts...)

	return &Services{
		Audit:   audit,
		Keys:    keys,
		Guard:   guard,
		Reviews: reviews,
		Records: NewRecordService(storages.Records, keys, audit, guard, reviews, validator, logger, opts...),
	}
}
