// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package server runs the admin HTTP server.
//
// A server blocks in RunServer until its context is cancelled and then shuts
// down gracefully within the configured shutdown timeout. Signal handling is
// left to the caller, which cancels the context.
package server
