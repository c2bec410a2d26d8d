// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

// Sentinel errors used by the authentication middleware when parsing the
// "Authorization" HTTP header. Callers can match against them with [errors.Is].
var (
	// ErrEmptyAuthorizationHeader is returned when the incoming request does
	// not include an "Authorization" header at all.
	ErrEmptyAuthorizationHeader = errors.New("empty `Authorization` header")

	// ErrInvalidToken is returned when the bearer token fails signature,
	// issuer or expiry checks.
	ErrInvalidToken = errors.New("token is expired or invalid")
)

// Errors of query string and body decoding. All of them map to 400.
var (
	ErrInvalidJSON            = errors.New("invalid JSON was passed")
	ErrInvalidQueryParam      = errors.New("invalid query parameter")
	ErrInvalidContentEncoding = errors.New("invalid gzip request body")
)
