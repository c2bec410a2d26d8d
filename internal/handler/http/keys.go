// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"time"

	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
)

// keysResponse lists key metadata. Material is never part of it.
type keysResponse struct {
	Versions            []models.EncryptionKeyVersion `json:"versions"`
	PendingReencryption int64                         `json:"pending_reencryption"`
	RotationDue         bool                          `json:"rotation_due"`
	RotationDueReason   string                        `json:"rotation_due_reason,omitempty"`
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	pending, err := h.services.Keys.PendingReencryptionCount(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	due, reason := h.services.Keys.RotationDue(time.Now())
	_, _ = utils.WriteJSON(w, keysResponse{
		Versions:            h.services.Keys.Versions(),
		PendingReencryption: pending,
		RotationDue:         due,
		RotationDueReason:   reason,
	}, http.StatusOK)
}
