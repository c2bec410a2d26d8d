// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/migrations"
)

// DB is a SQL connection shared by every repository of one backend.
//
// builder renders placeholders for the connected dialect, so repositories
// build their queries once for both PostgreSQL and SQLite.
type DB struct {
	*sql.DB
	driver             string
	builder            sq.StatementBuilderType
	errorClassificator ErrorClassificator
	logger             *logger.Logger
}

// ErrorClassificator decides how a failed database operation is treated.
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver returns the name of the connected dialect.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies every pending schema migration of the connected dialect.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB, db.driver)
}

// runner returns the transaction carried by ctx, or the pool when there is none.
func (db *DB) runner(ctx context.Context) queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db.DB
}

// isConflict reports whether err is a unique or primary key violation.
func (db *DB) isConflict(err error) bool {
	return db.errorClassificator != nil && db.errorClassificator.Classify(err) == Conflict
}
