// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"fmt"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
)

// NewSecretProvider builds the provider selected by cfg.Provider.
func NewSecretProvider(cfg config.Secrets, log *logger.Logger) (SecretProvider, error) {
	switch cfg.Provider {
	case config.SecretsEnv:
		return NewEnvSecretProvider(cfg)
	case config.SecretsFile:
		return NewFileSecretProvider(cfg.KeyringFile, log)
	case config.SecretsHTTP:
		return NewHTTPSecretProvider(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
