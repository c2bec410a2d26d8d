// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient is a wrapper around resty.Client. It embeds *resty.Client to
// expose all of its methods directly.
//
// Example usage:
//
//	client := utils.NewHTTPClient("https://vault.internal", 5*time.Second)
//	resp, err := client.R().Get("/keys/active")
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient creates an independent client with baseURL and timeout set.
// A zero timeout leaves resty's default (no timeout). JSON is the default
// content type for requests and the expected type of responses.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPClient{Client: client}
}
