// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
)

// defaultAuditLimit applies when the caller sends no limit.
const defaultAuditLimit = 100

// auditPage is the body of GET /api/audit. NextAfterSeq is the value of
// after_seq that fetches the following page; it is zero on the last page.
type auditPage struct {
	Records      []models.AuditRecord `json:"records"`
	NextAfterSeq int64                `json:"next_after_seq,omitempty"`
}

func (h *Handler) queryAudit(w http.ResponseWriter, r *http.Request) {
	q, err := auditQueryFromURL(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err = h.validator.Validate(r.Context(), q); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err))
		return
	}

	records, err := h.services.Audit.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page := auditPage{Records: records}
	if page.Records == nil {
		page.Records = []models.AuditRecord{}
	}
	if n := len(records); n > 0 && uint64(n) == q.Limit {
		page.NextAfterSeq = records[n-1].Seq
	}

	_, _ = utils.WriteJSON(w, page, http.StatusOK)
}

// verifyAudit answers 200 for an intact chain and 409 with the position of
// the first broken link otherwise.
func (h *Handler) verifyAudit(w http.ResponseWriter, r *http.Request) {
	result, err := h.services.Audit.Verify(r.Context())
	if err != nil && !errors.Is(err, service.ErrChainBroken) {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
		logger.FromRequest(r).Warn().
			Int64("broken_at", result.BrokenAt).
			Str("reason", result.Reason).
			Msg("audit chain verification failed")
	}

	_, _ = utils.WriteJSON(w, result, status)
}

func (h *Handler) auditStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.services.Audit.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, _ = utils.WriteJSON(w, stats, http.StatusOK)
}

// auditQueryFromURL reads entity, entity_id, actor, from, to (RFC 3339),
// limit and after_seq.
func auditQueryFromURL(values url.Values) (models.AuditQuery, error) {
	q := models.AuditQuery{
		EntityName: values.Get("entity"),
		EntityID:   values.Get("entity_id"),
		Actor:      values.Get("actor"),
		Limit:      defaultAuditLimit,
	}

	var err error
	if q.From, err = timeParam(values, "from"); err != nil {
		return models.AuditQuery{}, err
	}
	if q.To, err = timeParam(values, "to"); err != nil {
		return models.AuditQuery{}, err
	}

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 {
			return models.AuditQuery{}, fmt.Errorf("%w: limit %q", ErrInvalidQueryParam, v)
		}
		q.Limit = limit
	}

	if v := values.Get("after_seq"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil || seq < 0 {
			return models.AuditQuery{}, fmt.Errorf("%w: after_seq %q", ErrInvalidQueryParam, v)
		}
		q.AfterSeq = seq
	}

	return q, nil
}

func timeParam(values url.Values, name string) (*time.Time, error) {
	v := values.Get(name)
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidQueryParam, name, v)
	}
	t = t.UTC()
	return &t, nil
}
