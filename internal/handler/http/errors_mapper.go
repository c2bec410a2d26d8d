// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/utils"
)

// errorMapping pairs a sentinel with its status. The table is ordered: more
// specific errors come first because wrapped errors often match several
// entries (a ChainError also matches ErrChainBroken, an audit failure
// carries the store error that caused it).
type errorMapping struct {
	target error
	status int
}

var errorStatusMap = []errorMapping{
	{ErrInvalidJSON, http.StatusBadRequest},
	{ErrInvalidQueryParam, http.StatusBadRequest},
	{ErrInvalidContentEncoding, http.StatusBadRequest},
	{ErrEmptyAuthorizationHeader, http.StatusUnauthorized},
	{ErrInvalidToken, http.StatusUnauthorized},
	{utils.ErrInvalidAuthHeader, http.StatusUnauthorized},

	{service.ErrAuditWriteFailed, http.StatusInternalServerError},
	{service.ErrChainBroken, http.StatusConflict},
	{service.ErrSecurityViolation, http.StatusForbidden},

	{service.ErrInvalidRequest, http.StatusBadRequest},
	{service.ErrActorRequired, http.StatusBadRequest},
	{service.ErrInvalidMutation, http.StatusBadRequest},
	{service.ErrAnonymizationRequired, http.StatusUnprocessableEntity},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrJustificationRequired, http.StatusUnprocessableEntity},
	{service.ErrConfidenceRequired, http.StatusUnprocessableEntity},

	{service.ErrKeyNotFound, http.StatusNotFound},
	{service.ErrKeyRetired, http.StatusGone},
	{service.ErrRotationInProgress, http.StatusConflict},
	{service.ErrReencryptionPending, http.StatusConflict},
	{service.ErrInvalidKeyTransition, http.StatusConflict},
	{service.ErrNoActiveKey, http.StatusServiceUnavailable},
	{crypto.ErrAuthenticationFailed, http.StatusUnprocessableEntity},

	{store.ErrRecordNotFound, http.StatusNotFound},
	{store.ErrReviewItemNotFound, http.StatusNotFound},
	{store.ErrRecordExists, http.StatusConflict},
	{store.ErrReviewItemExists, http.StatusConflict},
	{store.ErrVersionConflict, http.StatusConflict},
	{store.ErrChainConflict, http.StatusConflict},
}

func statusFromError(err error) int {
	for _, m := range errorStatusMap {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// writeError logs err and answers with its mapped status. Internal errors
// are answered with the generic status text so that no storage detail leaks.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)

	log := logger.FromRequest(r)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Err(err).Int("status", status).Msg("request failed")
		message = http.StatusText(status)
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}

	utils.WriteError(w, message, utils.GetTraceIDFromContext(r.Context()), status)
}
