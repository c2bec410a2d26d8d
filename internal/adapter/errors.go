// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import "errors"

var (
	ErrKeyNotFound         = errors.New("key not found at secret provider")
	ErrReadOnlyProvider    = errors.New("secret provider is read-only")
	ErrInvalidKeyEntry     = errors.New("invalid key entry")
	ErrUnknownProvider     = errors.New("unknown secret provider")
	ErrBadRequest          = errors.New("secret store rejected the request")
	ErrUnauthorized        = errors.New("secret store unauthorized")
	ErrForbidden           = errors.New("secret store forbidden")
	ErrConflict            = errors.New("secret store conflict")
	ErrBadGateway          = errors.New("secret store bad gateway")
	ErrInternalServerError = errors.New("secret store internal error")
)
