// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/metrics"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/validators"
)

type Handler struct {
	services *service.Services
	metrics  *metrics.Metrics
	app      config.App

	validator validators.Validator

	logger *logger.Logger
}

// NewHandler returns the admin API handler. m may be nil, in which case no
// /metrics route is mounted and requests are not measured.
func NewHandler(services *service.Services, m *metrics.Metrics, app config.App, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		metrics:  m,
		app:      app,

		validator: validators.NewRequestValidator(),
		logger:    logger,
	}
}
