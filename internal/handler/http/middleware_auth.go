// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"fmt"
	"net/http"

	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/rs/zerolog"
)

// auth is an HTTP middleware that enforces JWT bearer authentication.
//
// The token must be signed with the configured sign key, carry the configured
// issuer and be unexpired. Its subject is stored in the request context with
// [utils.WithActor]; every audit record written on behalf of the request
// names that actor. The request logger gains an "actor" field.
//
// Requests without a usable token are answered with 401.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, r, ErrEmptyAuthorizationHeader)
			return
		}

		tokenString, err := utils.ParseBearerToken(authHeader)
		if err != nil {
			writeError(w, r, err)
			return
		}

		token, err := utils.ValidateAndParseJWTToken(tokenString, h.app.TokenSignKey, h.app.TokenIssuer)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %w", ErrInvalidToken, err))
			return
		}

		log := logger.FromRequest(r).GetChildLogger()
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("actor", token.Actor)
		})

		ctx := utils.WithActor(r.Context(), token.Actor)
		next.ServeHTTP(w, r.WithContext(log.WithContext(ctx)))
	})
}
