// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
)

// Storages bundles the repositories of one backend with the transactor that
// joins them.
type Storages struct {
	Transactor Transactor
	Records    RecordRepository
	Audit      AuditRepository
	Reviews    ReviewRepository
	Keys       KeyVersionRepository

	db *DB
}

// NewStorages connects to the SQL backend selected by cfg.Driver.
// The in-process backend lives in package memory.
func NewStorages(ctx context.Context, cfg config.DB, log *logger.Logger) (*Storages, error) {
	var (
		db  *DB
		err error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = NewConnectPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		db, err = NewConnectSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return NewStoragesFromDB(db), nil
}

// NewStoragesFromDB wires every SQL repository to db.
func NewStoragesFromDB(db *DB) *Storages {
	return &Storages{
		Transactor: db,
		Records:    NewRecordRepository(db),
		Audit:      NewAuditRepository(db),
		Reviews:    NewReviewRepository(db),
		Keys:       NewKeyVersionRepository(db),
		db:         db,
	}
}

// Migrate applies pending schema migrations. It is a no-op for backends
// without a SQL connection.
func (s *Storages) Migrate() error {
	if s.db == nil {
		return nil
	}
	return s.db.Migrate()
}

// Close releases the SQL connection, if any.
func (s *Storages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
