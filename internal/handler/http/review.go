// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/go-chi/chi/v5"
)

const defaultReviewLimit = 50

// listPendingReviews serves GET /api/review/pending. The optional status
// parameter lists another state of the queue instead.
func (h *Handler) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	limit := uint64(defaultReviewLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			writeError(w, r, fmt.Errorf("%w: limit %q", ErrInvalidQueryParam, v))
			return
		}
		limit = n
	}

	var (
		items []models.ReviewItem
		err   error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		items, err = h.services.Reviews.List(r.Context(), models.ReviewStatus(status), limit)
	} else {
		items, err = h.services.Reviews.ListPending(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if items == nil {
		items = []models.ReviewItem{}
	}
	_, _ = utils.WriteJSON(w, items, http.StatusOK)
}

// transitionReview serves POST /api/review/{id}/transition. The reviewer is
// the authenticated actor; a reviewer field in the body is ignored.
func (h *Handler) transitionReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var req models.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	req.ID = chi.URLParam(r, "id")
	req.Actor, _ = utils.GetActorFromContext(r.Context())

	item, err := h.services.Reviews.Transition(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("review_id", item.ID).Str("status", string(item.Status)).Msg("review item transitioned")
	_, _ = utils.WriteJSON(w, item, http.StatusOK)
}
