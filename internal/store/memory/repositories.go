// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/models"
)

type recordRepository struct{ s *Store }

func (r *recordRepository) Get(ctx context.Context, entityName, entityID string) (*models.ProtectedRecord, error) {
	defer r.s.lock(ctx)()

	rec, ok := r.s.st.records[recordKey{entityName, entityID}]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	c := cloneRecord(rec)
	return &c, nil
}

func (r *recordRepository) Insert(ctx context.Context, rec *models.ProtectedRecord) error {
	defer r.s.lock(ctx)()

	k := recordKey{rec.EntityName, rec.EntityID}
	if _, ok := r.s.st.records[k]; ok {
		return store.ErrRecordExists
	}
	r.s.st.records[k] = cloneRecord(*rec)
	return nil
}

func (r *recordRepository) Update(ctx context.Context, rec *models.ProtectedRecord, expectedVersion int64) error {
	defer r.s.lock(ctx)()

	k := recordKey{rec.EntityName, rec.EntityID}
	cur, ok := r.s.st.records[k]
	if !ok || cur.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	next := cloneRecord(*rec)
	next.CreatedAt = cur.CreatedAt
	r.s.st.records[k] = next
	return nil
}

func (r *recordRepository) Delete(ctx context.Context, entityName, entityID string, expectedVersion int64) error {
	defer r.s.lock(ctx)()

	k := recordKey{entityName, entityID}
	cur, ok := r.s.st.records[k]
	if !ok || cur.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	delete(r.s.st.records, k)
	return nil
}

func (r *recordRepository) ListNotOnKey(ctx context.Context, keyID string, after models.RecordRef, limit uint64) ([]models.ProtectedRecord, error) {
	defer r.s.lock(ctx)()

	out := make([]models.ProtectedRecord, 0)
	for k, rec := range r.s.st.records {
		if !notOnKey(rec, keyID) || !isAfter(k, after) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}

	slices.SortFunc(out, func(a, b models.ProtectedRecord) int {
		return cmp.Or(cmp.Compare(a.EntityName, b.EntityName), cmp.Compare(a.EntityID, b.EntityID))
	})
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *recordRepository) CountNotOnKey(ctx context.Context, keyID string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, rec := range r.s.st.records {
		if notOnKey(rec, keyID) {
			n++
		}
	}
	return n, nil
}

func (r *recordRepository) CountOnKey(ctx context.Context, keyID string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, rec := range r.s.st.records {
		if rec.KeyVersion == keyID {
			n++
		}
	}
	return n, nil
}

func (r *recordRepository) Reseal(ctx context.Context, rec *models.ProtectedRecord, oldKey string) (bool, error) {
	defer r.s.lock(ctx)()

	k := recordKey{rec.EntityName, rec.EntityID}
	cur, ok := r.s.st.records[k]
	if !ok || cur.KeyVersion != oldKey || cur.Version != rec.Version {
		return false, nil
	}
	next := cloneRecord(*rec)
	cur.KeyVersion = next.KeyVersion
	cur.Fields = next.Fields
	r.s.st.records[k] = cur
	return true, nil
}

func notOnKey(rec models.ProtectedRecord, keyID string) bool {
	return rec.KeyVersion != "" && rec.KeyVersion != keyID
}

func isAfter(k recordKey, after models.RecordRef) bool {
	return k.entity > after.EntityName || (k.entity == after.EntityName && k.id > after.EntityID)
}

type auditRepository struct{ s *Store }

// Lock is a no-op: the store lock already serialises transactions.
func (a *auditRepository) Lock(context.Context) error {
	return nil
}

func (a *auditRepository) Last(ctx context.Context) (*models.AuditRecord, error) {
	defer a.s.lock(ctx)()

	if len(a.s.st.audit) == 0 {
		return nil, nil
	}
	last := cloneAudit(a.s.st.audit[len(a.s.st.audit)-1])
	return &last, nil
}

func (a *auditRepository) Append(ctx context.Context, rec *models.AuditRecord) error {
	defer a.s.lock(ctx)()

	for _, existing := range a.s.st.audit {
		if existing.Seq == rec.Seq || existing.PreviousHash == rec.PreviousHash || existing.ID == rec.ID {
			return store.ErrChainConflict
		}
	}
	a.s.st.audit = append(a.s.st.audit, cloneAudit(*rec))
	return nil
}

func (a *auditRepository) Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	defer a.s.lock(ctx)()

	out := make([]models.AuditRecord, 0)
	for _, rec := range a.s.st.audit {
		if !matches(rec, q) {
			continue
		}
		out = append(out, cloneAudit(rec))
		if q.Limit > 0 && uint64(len(out)) == q.Limit {
			break
		}
	}
	return out, nil
}

func matches(rec models.AuditRecord, q models.AuditQuery) bool {
	switch {
	case rec.Seq <= q.AfterSeq:
		return false
	case q.EntityName != "" && rec.EntityName != q.EntityName:
		return false
	case q.EntityID != "" && rec.EntityID != q.EntityID:
		return false
	case q.Actor != "" && rec.Actor != q.Actor:
		return false
	case q.From != nil && rec.Timestamp.Before(*q.From):
		return false
	case q.To != nil && rec.Timestamp.After(*q.To):
		return false
	}
	return true
}

func (a *auditRepository) Statistics(ctx context.Context) (models.AuditStatistics, error) {
	defer a.s.lock(ctx)()

	stats := models.AuditStatistics{ByAction: make(map[models.AuditAction]int64)}
	for _, rec := range a.s.st.audit {
		stats.Total++
		stats.ByAction[rec.Action]++
		if rec.ContainsSensitiveData {
			stats.Sensitive++
		}
	}
	return stats, nil
}

type reviewRepository struct{ s *Store }

func (r *reviewRepository) Create(ctx context.Context, item *models.ReviewItem) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.reviews[item.ID]; ok {
		return store.ErrReviewItemExists
	}
	r.s.st.reviews[item.ID] = cloneReview(*item)
	return nil
}

func (r *reviewRepository) Get(ctx context.Context, id string) (*models.ReviewItem, error) {
	defer r.s.lock(ctx)()

	item, ok := r.s.st.reviews[id]
	if !ok {
		return nil, store.ErrReviewItemNotFound
	}
	c := cloneReview(item)
	return &c, nil
}

func (r *reviewRepository) Update(ctx context.Context, item *models.ReviewItem, expected models.ReviewStatus) error {
	defer r.s.lock(ctx)()

	cur, ok := r.s.st.reviews[item.ID]
	if !ok || cur.Status != expected {
		return store.ErrVersionConflict
	}
	r.s.st.reviews[item.ID] = cloneReview(*item)
	return nil
}

func (r *reviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error) {
	defer r.s.lock(ctx)()

	out := make([]models.ReviewItem, 0)
	for _, item := range r.s.st.reviews {
		if item.Status == status {
			out = append(out, cloneReview(item))
		}
	}

	slices.SortFunc(out, func(a, b models.ReviewItem) int {
		return cmp.Or(a.Created.Compare(b.Created), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type keyRepository struct{ s *Store }

func (k *keyRepository) List(ctx context.Context) ([]models.EncryptionKeyVersion, error) {
	defer k.s.lock(ctx)()

	out := make([]models.EncryptionKeyVersion, 0, len(k.s.st.keys))
	for _, v := range k.s.st.keys {
		out = append(out, v)
	}

	slices.SortFunc(out, func(a, b models.EncryptionKeyVersion) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Upsert keeps metadata only; material is dropped like in the SQL backends.
func (k *keyRepository) Upsert(ctx context.Context, v models.EncryptionKeyVersion) error {
	defer k.s.lock(ctx)()

	v.Material = nil
	if v.RetentionUntil != nil {
		t := *v.RetentionUntil
		v.RetentionUntil = &t
	}
	if cur, ok := k.s.st.keys[v.ID]; ok {
		v.CreatedAt = cur.CreatedAt
	}
	k.s.st.keys[v.ID] = v
	return nil
}
