// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, withGZip)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Get("/version", h.getServerVersion)
		if h.metrics != nil {
			r.Method("GET", "/metrics", h.metrics.Handler())
		}
	})

	router.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/api/audit", h.queryAudit)
		r.Get("/api/audit/verify", h.verifyAudit)
		r.Get("/api/audit/stats", h.auditStatistics)

		r.Get("/api/review/pending", h.listPendingReviews)
		r.Post("/api/review/{id}/transition", h.transitionReview)

		r.Get("/api/keys", h.listKeys)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
