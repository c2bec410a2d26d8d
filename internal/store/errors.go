// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrRecordNotFound is returned when no protected record matches the
	// requested entity name and id.
	ErrRecordNotFound = errors.New("protected record was not found")

	// ErrRecordExists is returned when a create targets an entity that is
	// already stored.
	ErrRecordExists = errors.New("protected record already exists")

	// ErrVersionConflict is returned when an optimistic-locking check fails:
	// the row changed since it was read inside the current transaction.
	ErrVersionConflict = errors.New("version conflict occurred")

	// ErrReviewItemNotFound is returned when no review item has the given id.
	ErrReviewItemNotFound = errors.New("review item was not found")

	// ErrReviewItemExists is returned when a review item id is reused.
	ErrReviewItemExists = errors.New("review item already exists")

	// ErrChainConflict is returned when an appended audit record claims a
	// sequence number or previous hash that another record already holds.
	// The enclosing transaction must be rolled back.
	ErrChainConflict = errors.New("audit chain conflict")

	// ErrUnknownDriver is returned by [NewStorages] for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown database driver")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to execute statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when multi-row iteration fails, typically
	// mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")

	// ErrEncodingColumn is returned when a JSON column cannot be encoded or
	// decoded.
	ErrEncodingColumn = errors.New("failed to encode column")
)
