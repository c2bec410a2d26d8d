// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "fmt"

// validate checks the invariants shared by every program that loads the
// configuration. Missing key material is fatal here, at startup.
func (cfg *StructuredConfig) validate() error {
	switch cfg.Storage.DB.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if cfg.Storage.DB.DSN == "" {
			return fmt.Errorf("%w: empty DSN for driver %q", ErrInvalidStorageConfigs, cfg.Storage.DB.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidStorageConfigs, cfg.Storage.DB.Driver)
	}

	s := cfg.Secrets
	switch s.Provider {
	case SecretsEnv:
		if s.ActiveKey == "" && (s.Passphrase == "" || s.Salt == "") {
			return fmt.Errorf("%w: env provider needs an active key or a passphrase with salt", ErrInvalidSecretsConfigs)
		}
		if s.ActiveKeyID == "" {
			return fmt.Errorf("%w: empty active key id", ErrInvalidSecretsConfigs)
		}
	case SecretsFile:
		if s.KeyringFile == "" {
			return fmt.Errorf("%w: file provider needs a keyring file", ErrInvalidSecretsConfigs)
		}
	case SecretsHTTP:
		if s.HTTPAddress == "" {
			return fmt.Errorf("%w: http provider needs an address", ErrInvalidSecretsConfigs)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidSecretsConfigs, s.Provider)
	}

	if cfg.Keys.RetentionWindow <= 0 || cfg.Keys.RotationInterval < 0 || cfg.Keys.UsageCeiling < 0 {
		return ErrInvalidKeysConfigs
	}

	w := cfg.Workers
	if w.SweepInterval <= 0 || w.SweepBatchSize <= 0 || w.RotationCheckInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}

// validateServer adds the checks needed by the long-running admin server.
func (cfg *StructuredConfig) validateServer() error {
	if cfg.App.TokenSignKey == "" || cfg.App.TokenIssuer == "" || cfg.App.TokenDuration <= 0 {
		return ErrInvalidAppConfigs
	}

	if cfg.Server.HTTPAddress == "" || cfg.Server.RequestTimeout <= 0 {
		return ErrInvalidServerConfigs
	}

	return nil
}
