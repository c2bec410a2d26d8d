// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/phi-guard/models"
)

const selectRecordSQL = `SELECT entity_name, entity_id, key_version, version, fields, created_at, updated_at FROM protected_records`

var recordRowColumns = []string{"entity_name", "entity_id", "key_version", "version", "fields", "created_at", "updated_at"}

func testRecord() *models.ProtectedRecord {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.ProtectedRecord{
		EntityName: "Patient",
		EntityID:   "p1",
		KeyVersion: "k1",
		Version:    1,
		Fields: []models.StoredField{
			{Name: "city", Value: []byte("Bern")},
			{Name: "name", Sensitive: true, Value: make([]byte, models.HeaderSize+4)},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestRecordRepository_Get(t *testing.T) {
	rec := testRecord()
	fields, err := encodeJSONColumn(rec.Fields)
	require.NoError(t, err)

	tests := []struct {
		name      string
		mockSetup func(m sqlmock.Sqlmock)
		want      *models.ProtectedRecord
		wantErr   error
	}{
		{
			name: "found",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectRecordSQL+` WHERE entity_id = $1 AND entity_name = $2`)).
					WithArgs("p1", "Patient").
					WillReturnRows(sqlmock.NewRows(recordRowColumns).
						AddRow("Patient", "p1", "k1", int64(1), fields, rec.CreatedAt.UnixMicro(), rec.UpdatedAt.UnixMicro()))
			},
			want: rec,
		},
		{
			name: "not found",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectRecordSQL)).
					WillReturnRows(sqlmock.NewRows(recordRowColumns))
			},
			wantErr: ErrRecordNotFound,
		},
		{
			name: "broken fields column",
			mockSetup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectRecordSQL)).
					WillReturnRows(sqlmock.NewRows(recordRowColumns).
						AddRow("Patient", "p1", "k1", int64(1), "{not json", int64(0), int64(0)))
			},
			wantErr: ErrEncodingColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock := newTestDB(t)
			tt.mockSetup(mock)

			got, err := NewRecordRepository(newDBFromSQL(sqlDB)).Get(testContext(), "Patient", "p1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordRepository_Insert(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "inserted"},
		{name: "duplicate", execErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, wantErr: ErrRecordExists},
		{name: "other failure", execErr: errors.New("conn reset"), wantErr: ErrExecutingStatement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock := newTestDB(t)
			rec := testRecord()

			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO protected_records (entity_name,entity_id,key_version,version,fields,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`)).
				WithArgs("Patient", "p1", "k1", int64(1), sqlmock.AnyArg(), rec.CreatedAt.UnixMicro(), rec.UpdatedAt.UnixMicro())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := NewRecordRepository(newDBFromSQL(sqlDB)).Insert(testContext(), rec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "stale version", affected: 0, wantErr: ErrVersionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock := newTestDB(t)
			rec := testRecord()
			rec.Version = 2

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE protected_records SET key_version = $1, version = $2, fields = $3, updated_at = $4 WHERE entity_id = $5 AND entity_name = $6 AND version = $7`)).
				WithArgs("k1", int64(2), sqlmock.AnyArg(), rec.UpdatedAt.UnixMicro(), "p1", "Patient", int64(1)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := NewRecordRepository(newDBFromSQL(sqlDB)).Update(testContext(), rec, 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordRepository_Delete(t *testing.T) {
	sqlDB, mock := newTestDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM protected_records WHERE entity_id = $1 AND entity_name = $2 AND version = $3`)).
		WithArgs("p1", "Patient", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewRecordRepository(newDBFromSQL(sqlDB)).Delete(testContext(), "Patient", "p1", 4)
	assert.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_ListNotOnKey(t *testing.T) {
	sqlDB, mock := newTestDB(t)
	rec := testRecord()
	fields, err := encodeJSONColumn(rec.Fields)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(selectRecordSQL+` WHERE (key_version <> $1 AND key_version <> $2) AND (entity_name > $3 OR (entity_name = $4 AND entity_id > $5)) ORDER BY entity_name, entity_id LIMIT 2`)).
		WithArgs("", "k2", "Patient", "Patient", "p0").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).
			AddRow("Patient", "p1", "k1", int64(1), fields, int64(0), int64(0)).
			AddRow("Session", "s1", "k1", int64(3), "[]", int64(0), int64(0)))

	got, err := NewRecordRepository(newDBFromSQL(sqlDB)).
		ListNotOnKey(testContext(), "k2", models.RecordRef{EntityName: "Patient", EntityID: "p0"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].EntityID)
	assert.Len(t, got[0].Fields, 2)
	assert.Equal(t, "Session", got[1].EntityName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_Counts(t *testing.T) {
	sqlDB, mock := newTestDB(t)
	repo := NewRecordRepository(newDBFromSQL(sqlDB))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM protected_records WHERE (key_version <> $1 AND key_version <> $2)`)).
		WithArgs("", "k2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM protected_records WHERE key_version = $1`)).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM protected_records`)).
		WillReturnError(errors.New("timeout"))

	n, err := repo.CountNotOnKey(testContext(), "k2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.CountOnKey(testContext(), "k1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.CountOnKey(testContext(), "k1")
	assert.ErrorIs(t, err, ErrExecutingQuery)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_Reseal(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "rewritten", affected: 1, want: true},
		{name: "already moved by another writer", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock := newTestDB(t)
			rec := testRecord()
			rec.KeyVersion = "k2"

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE protected_records SET key_version = $1, fields = $2 WHERE entity_id = $3 AND entity_name = $4 AND key_version = $5 AND version = $6`)).
				WithArgs("k2", sqlmock.AnyArg(), "p1", "Patient", "k1", int64(1)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := NewRecordRepository(newDBFromSQL(sqlDB)).Reseal(testContext(), rec, "k1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
