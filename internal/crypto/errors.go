// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "errors"

var (
	ErrInvalidKeyLength       = errors.New("key must be exactly 32 bytes")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrInvalidKeyEncoding     = errors.New("key is not valid base64")
	ErrInvalidInsuranceNumber = errors.New("invalid insurance number format")
	ErrRandomSource           = errors.New("reading random source failed")
)
