// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON-friendly duration
// values ("30s", "720h").
type StructuredJSONConfig struct {
	App struct {
		TokenSignKey  string   `json:"token_sign_key"`
		TokenIssuer   string   `json:"token_issuer"`
		TokenDuration Duration `json:"token_duration"`
		Version       string   `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			Driver string `json:"driver"`
			DSN    string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress     string   `json:"http_address"`
		RequestTimeout  Duration `json:"request_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout"`
	} `json:"server,omitempty"`

	Secrets struct {
		Provider       string   `json:"provider"`
		ActiveKeyID    string   `json:"active_key_id"`
		ActiveKey      string   `json:"active_key"`
		PreviousKeys   string   `json:"previous_keys"`
		Passphrase     string   `json:"passphrase"`
		Salt           string   `json:"salt"`
		KeyringFile    string   `json:"keyring_file"`
		HTTPAddress    string   `json:"http_address"`
		HTTPToken      string   `json:"http_token"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"secrets,omitempty"`

	Keys struct {
		RotationInterval Duration `json:"rotation_interval"`
		UsageCeiling     int64    `json:"usage_ceiling"`
		RetentionWindow  Duration `json:"retention_window"`
	} `json:"keys,omitempty"`

	Workers struct {
		SweepInterval         Duration `json:"sweep_interval"`
		SweepBatchSize        int      `json:"sweep_batch_size"`
		RotationCheckInterval Duration `json:"rotation_check_interval"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			TokenSignKey:  jsonCfg.App.TokenSignKey,
			TokenIssuer:   jsonCfg.App.TokenIssuer,
			TokenDuration: time.Duration(jsonCfg.App.TokenDuration),
			Version:       jsonCfg.App.Version,
		},
		Storage: Storage{
			DB: DB{
				Driver: jsonCfg.Storage.DB.Driver,
				DSN:    jsonCfg.Storage.DB.DSN,
			},
		},
		Server: Server{
			HTTPAddress:     jsonCfg.Server.HTTPAddress,
			RequestTimeout:  time.Duration(jsonCfg.Server.RequestTimeout),
			ShutdownTimeout: time.Duration(jsonCfg.Server.ShutdownTimeout),
		},
		Secrets: Secrets{
			Provider:       jsonCfg.Secrets.Provider,
			ActiveKeyID:    jsonCfg.Secrets.ActiveKeyID,
			ActiveKey:      jsonCfg.Secrets.ActiveKey,
			PreviousKeys:   jsonCfg.Secrets.PreviousKeys,
			Passphrase:     jsonCfg.Secrets.Passphrase,
			Salt:           jsonCfg.Secrets.Salt,
			KeyringFile:    jsonCfg.Secrets.KeyringFile,
			HTTPAddress:    jsonCfg.Secrets.HTTPAddress,
			HTTPToken:      jsonCfg.Secrets.HTTPToken,
			RequestTimeout: time.Duration(jsonCfg.Secrets.RequestTimeout),
		},
		Keys: Keys{
			RotationInterval: time.Duration(jsonCfg.Keys.RotationInterval),
			UsageCeiling:     jsonCfg.Keys.UsageCeiling,
			RetentionWindow:  time.Duration(jsonCfg.Keys.RetentionWindow),
		},
		Workers: Workers{
			SweepInterval:         time.Duration(jsonCfg.Workers.SweepInterval),
			SweepBatchSize:        jsonCfg.Workers.SweepBatchSize,
			RotationCheckInterval: time.Duration(jsonCfg.Workers.RotationCheckInterval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" as well as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
