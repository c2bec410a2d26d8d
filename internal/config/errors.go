// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates an unknown driver or a missing DSN.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSecretsConfigs indicates that no key material can be loaded
	// with the configured provider.
	ErrInvalidSecretsConfigs = errors.New("invalid secrets configuration")
	// ErrInvalidKeysConfigs indicates a non-positive retention window or a
	// negative rotation trigger.
	ErrInvalidKeysConfigs = errors.New("invalid keys configuration")
	// ErrInvalidAppConfigs indicates missing token settings.
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
	// ErrInvalidServerConfigs indicates a missing listen address or timeout.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidWorkerConfigs indicates a zero interval or batch size.
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
