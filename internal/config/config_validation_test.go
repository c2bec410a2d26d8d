// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"testing"

	"dario.cat/mergo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDefaultsApplied(t *testing.T, cfg *StructuredConfig) *StructuredConfig {
	t.Helper()
	require.NoError(t, mergo.Merge(cfg, defaults()))
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StructuredConfig)
		wantErr error
	}{
		{name: "memory with env key", mutate: func(c *StructuredConfig) {}},
		{name: "unknown driver", mutate: func(c *StructuredConfig) { c.Storage.DB.Driver = "mysql" }, wantErr: ErrInvalidStorageConfigs},
		{name: "postgres without dsn", mutate: func(c *StructuredConfig) { c.Storage.DB.Driver = DriverPostgres }, wantErr: ErrInvalidStorageConfigs},
		{name: "sqlite with dsn", mutate: func(c *StructuredConfig) {
			c.Storage.DB.Driver = DriverSQLite
			c.Storage.DB.DSN = "file:phi.db"
		}},
		{name: "env without key", mutate: func(c *StructuredConfig) { c.Secrets.ActiveKey = "" }, wantErr: ErrInvalidSecretsConfigs},
		{name: "env with passphrase only", mutate: func(c *StructuredConfig) {
			c.Secrets.ActiveKey = ""
			c.Secrets.Passphrase = "pass"
		}, wantErr: ErrInvalidSecretsConfigs},
		{name: "env with passphrase and salt", mutate: func(c *StructuredConfig) {
			c.Secrets.ActiveKey = ""
			c.Secrets.Passphrase = "pass"
			c.Secrets.Salt = "salt"
		}},
		{name: "file without path", mutate: func(c *StructuredConfig) { c.Secrets.Provider = SecretsFile }, wantErr: ErrInvalidSecretsConfigs},
		{name: "http without address", mutate: func(c *StructuredConfig) { c.Secrets.Provider = SecretsHTTP }, wantErr: ErrInvalidSecretsConfigs},
		{name: "unknown provider", mutate: func(c *StructuredConfig) { c.Secrets.Provider = "kms" }, wantErr: ErrInvalidSecretsConfigs},
		{name: "negative usage ceiling", mutate: func(c *StructuredConfig) { c.Keys.UsageCeiling = -1 }, wantErr: ErrInvalidKeysConfigs},
		{name: "negative batch", mutate: func(c *StructuredConfig) { c.Workers.SweepBatchSize = -1 }, wantErr: ErrInvalidWorkerConfigs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withDefaultsApplied(t, minimalValid())
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := withDefaultsApplied(t, minimalValid())
	assert.ErrorIs(t, cfg.validateServer(), ErrInvalidAppConfigs)

	cfg.App.TokenSignKey = "sign"
	assert.NoError(t, cfg.validateServer())

	cfg.Server.HTTPAddress = ""
	assert.ErrorIs(t, cfg.validateServer(), ErrInvalidServerConfigs)
}
