// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
)

func (h *Handler) getServerVersion(w http.ResponseWriter, r *http.Request) {
	version := h.app.Version
	if version == "" {
		version = "N/A"
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(version))
}
