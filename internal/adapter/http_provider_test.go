// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestProvider creates an httpSecretProvider pointed at the test server.
func newTestProvider(t *testing.T, serverURL string) SecretProvider {
	t.Helper()
	p, err := NewHTTPSecretProvider(config.Secrets{HTTPAddress: serverURL, HTTPToken: "vault-token"}, logger.Nop())
	require.NoError(t, err)
	return p
}

func TestHTTPSecretProvider_ActiveKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/keys/active", r.URL.Path)
		assert.Equal(t, "Bearer vault-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keyPayload{ID: "k5", Key: crypto.EncodeKey(testKey(5))})
	}))
	defer srv.Close()

	id, key, err := newTestProvider(t, srv.URL).ActiveKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k5", id)
	assert.Equal(t, testKey(5), key)
}

func TestHTTPSecretProvider_KeyByVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/keys/k1":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(keyPayload{ID: "k1", Key: crypto.EncodeKey(testKey(1))})
		case "/keys/short":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(keyPayload{ID: "short", Key: crypto.EncodeKey(testKey(1)[:10])})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no such key"))
		}
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	ctx := context.Background()

	key, err := p.KeyByVersion(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, testKey(1), key)

	_, err = p.KeyByVersion(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = p.KeyByVersion(ctx, "short")
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyLength)
}

func TestHTTPSecretProvider_PutKey(t *testing.T) {
	var got keyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/keys/k7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestProvider(t, srv.URL).PutKey(context.Background(), "k7", testKey(7)))
	assert.Equal(t, "k7", got.ID)
	assert.Equal(t, crypto.EncodeKey(testKey(7)), got.Key)
}

func TestHTTPSecretProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusConflict, ErrConflict},
		{http.StatusBadGateway, ErrBadGateway},
		{http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, _, err := newTestProvider(t, srv.URL).ActiveKey(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := normalizeBaseURL(" vault.internal:8200/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://vault.internal:8200", got)

	_, err = normalizeBaseURL("")
	assert.Error(t, err)
}

func TestNewSecretProvider(t *testing.T) {
	p, err := NewSecretProvider(config.Secrets{Provider: config.SecretsFile, KeyringFile: t.TempDir() + "/k.json"}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &fileSecretProvider{}, p)

	p, err = NewSecretProvider(config.Secrets{Provider: config.SecretsHTTP, HTTPAddress: "http://localhost:8200"}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &httpSecretProvider{}, p)

	_, err = NewSecretProvider(config.Secrets{Provider: "kms"}, logger.Nop())
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
