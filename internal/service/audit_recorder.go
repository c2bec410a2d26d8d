// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/models"
)

// verifyPageSize is the number of records Verify reads per query.
const verifyPageSize = 500

type laneCtxKey struct{}

// lane collects what one chain transaction appended, reported once the
// transaction committed.
type lane struct {
	appended []bool
}

func laneFromContext(ctx context.Context) *lane {
	l, _ := ctx.Value(laneCtxKey{}).(*lane)
	return l
}

type changeAuditRecorder struct {
	tx   store.Transactor
	repo store.AuditRepository

	// mu is the in-process writer lane. Across processes appends are
	// serialised by AuditRepository.Lock and the unique chain constraints.
	mu sync.Mutex

	opts   options
	logger *logger.Logger
}

// NewChangeAuditRecorder returns a recorder appending to repo inside
// transactions opened by tx.
func NewChangeAuditRecorder(tx store.Transactor, repo store.AuditRepository, log *logger.Logger, opts ...Option) ChangeAuditRecorder {
	log.Debug().Msg("creating change audit recorder")
	return &changeAuditRecorder{
		tx:     tx,
		repo:   repo,
		opts:   newOptions(opts),
		logger: log,
	}
}

func (r *changeAuditRecorder) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if laneFromContext(ctx) != nil {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l := &lane{}
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.repo.Lock(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrAuditWriteFailed, err)
		}
		return fn(context.WithValue(ctx, laneCtxKey{}, l))
	})
	if err != nil {
		return err
	}

	for _, sensitive := range l.appended {
		r.opts.observer.AuditAppended(sensitive)
	}
	return nil
}

func (r *changeAuditRecorder) Record(ctx context.Context, m models.AuditMutation) (*models.AuditRecord, error) {
	if err := validateAuditMutation(m); err != nil {
		return nil, err
	}

	l := laneFromContext(ctx)
	if l == nil {
		var rec *models.AuditRecord
		err := r.InTx(ctx, func(ctx context.Context) error {
			var err error
			rec, err = r.Record(ctx, m)
			return err
		})
		return rec, err
	}

	last, err := r.repo.Last(ctx)
	if err != nil {
		r.logger.Err(err).Str("func", "*changeAuditRecorder.Record").Msg("error reading chain tail")
		return nil, fmt.Errorf("%w: %w", ErrAuditWriteFailed, err)
	}

	changes := Diff(m)
	rec := models.AuditRecord{
		ID:                    r.opts.ids.Generate(),
		Seq:                   1,
		EntityName:            m.EntityName,
		EntityID:              m.EntityID,
		Action:                m.Action,
		ChangedFieldNames:     changedFieldNames(changes),
		ContainsSensitiveData: containsSensitiveData(m, changes),
		Actor:                 m.Actor,
		Timestamp:             r.opts.now().UTC().Truncate(time.Microsecond),
		PreviousHash:          GenesisHash,
	}
	if last != nil {
		rec.Seq = last.Seq + 1
		rec.PreviousHash = last.SelfHash
		// the chain orders by time as well as by seq
		if !rec.Timestamp.After(last.Timestamp) {
			rec.Timestamp = last.Timestamp.Add(time.Microsecond)
		}
	}
	rec.SelfHash = ComputeRecordHash(rec)

	if err = r.repo.Append(ctx, &rec); err != nil {
		r.logger.Err(err).Str("func", "*changeAuditRecorder.Record").
			Int64("seq", rec.Seq).Msg("error appending audit record")
		return nil, fmt.Errorf("%w: %w", ErrAuditWriteFailed, err)
	}
	l.appended = append(l.appended, rec.ContainsSensitiveData)

	r.logger.Debug().
		Int64("seq", rec.Seq).
		Str("entity", rec.EntityName).
		Str("action", string(rec.Action)).
		Msg("audit record appended")

	return &rec, nil
}

func validateAuditMutation(m models.AuditMutation) error {
	switch {
	case m.Actor == "":
		return ErrActorRequired
	case m.EntityName == "" || m.EntityID == "":
		return fmt.Errorf("%w: entity name and id are required", ErrInvalidMutation)
	case !m.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMutation, m.Action)
	}
	return nil
}

func (r *changeAuditRecorder) Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	return r.repo.Query(ctx, q)
}

func (r *changeAuditRecorder) Verify(ctx context.Context) (models.ChainVerification, error) {
	v := newChainVerifier()
	q := models.AuditQuery{Limit: verifyPageSize}

	for {
		page, err := r.repo.Query(ctx, q)
		if err != nil {
			return models.ChainVerification{}, err
		}

		for _, rec := range page {
			if err = v.next(rec); err != nil {
				var chainErr *ChainError
				errors.As(err, &chainErr)
				r.logger.Warn().Int64("seq", chainErr.Seq).Str("reason", chainErr.Reason).Msg("audit chain is broken")
				return models.ChainVerification{
					Records:  v.count,
					BrokenAt: chainErr.Seq,
					Reason:   chainErr.Reason,
					LastHash: v.prevHash,
				}, err
			}
		}

		if len(page) < verifyPageSize {
			break
		}
		q.AfterSeq = v.prevSeq
	}

	return models.ChainVerification{
		Records:  v.count,
		Valid:    true,
		LastHash: v.prevHash,
	}, nil
}

func (r *changeAuditRecorder) Statistics(ctx context.Context) (models.AuditStatistics, error) {
	return r.repo.Statistics(ctx)
}
