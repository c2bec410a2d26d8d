// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package http is the admin API of phi-guard.
//
// It exposes the audit query interface (log, chain verification, statistics),
// the review queue interface (pending items, transitions) and the key version
// list. Every /api route requires a bearer JWT; its subject is the actor
// written into the audit trail. Request tracing, access logging, request
// metrics and response compression are handled here before a request reaches
// the service layer.
package http
