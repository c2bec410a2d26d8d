// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/crypto"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/go-resty/resty/v2"
)

// keyPayload is the wire format of the secret store.
type keyPayload struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// httpSecretProvider talks to a remote secret store:
//
//	GET /keys/active -> {"id": "...", "key": "<base64>"}
//	GET /keys/{id}   -> {"id": "...", "key": "<base64>"}
//	PUT /keys/{id}      {"id": "...", "key": "<base64>"}; the store makes it active
type httpSecretProvider struct {
	client *utils.HTTPClient
	token  string

	logger *logger.Logger
}

// NewHTTPSecretProvider validates cfg.HTTPAddress and builds the client.
func NewHTTPSecretProvider(cfg config.Secrets, log *logger.Logger) (SecretProvider, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid secret store address: %w", err)
	}

	return &httpSecretProvider{
		client: utils.NewHTTPClient(baseURL, cfg.RequestTimeout),
		token:  strings.TrimSpace(cfg.HTTPToken),
		logger: log,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (h *httpSecretProvider) ActiveKey(ctx context.Context) (string, models.KeyMaterial, error) {
	payload, err := h.get(ctx, "/keys/active")
	if err != nil {
		return "", nil, err
	}
	if payload.ID == "" {
		return "", nil, fmt.Errorf("%w: secret store returned no key id", ErrInvalidKeyEntry)
	}

	key, err := crypto.ParseKey(payload.Key)
	if err != nil {
		return "", nil, fmt.Errorf("active key %q: %w", payload.ID, err)
	}
	return payload.ID, key, nil
}

func (h *httpSecretProvider) KeyByVersion(ctx context.Context, id string) (models.KeyMaterial, error) {
	payload, err := h.get(ctx, "/keys/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	key, err := crypto.ParseKey(payload.Key)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", id, err)
	}
	return key, nil
}

func (h *httpSecretProvider) PutKey(ctx context.Context, id string, key models.KeyMaterial) error {
	if err := crypto.ValidateKey(key); err != nil {
		return err
	}

	resp, err := h.authedRequest(ctx).
		SetBody(keyPayload{ID: id, Key: crypto.EncodeKey(key)}).
		Put("/keys/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("put key request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return err
	}

	h.logger.Info().Str("func", "httpSecretProvider.PutKey").Str("key_id", id).Msg("key stored at secret store")
	return nil
}

func (h *httpSecretProvider) get(ctx context.Context, path string) (keyPayload, error) {
	var payload keyPayload

	resp, err := h.authedRequest(ctx).
		SetResult(&payload).
		Get(path)
	if err != nil {
		return keyPayload{}, fmt.Errorf("get %s request: %w", path, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return keyPayload{}, err
	}

	return payload, nil
}

func (h *httpSecretProvider) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetAuthToken(h.token)
	}
	return req
}
