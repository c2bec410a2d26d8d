// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package utils provides general-purpose helper utilities used across
// phi-guard: typed context keys, JSON response writing, the resty HTTP
// client wrapper, JWT issuing and validation, and id generation.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
func (c contextKey) String() string {
	return string(c)
}

// ActorCtxKey stores the authenticated actor (JWT subject) of a request.
// Every audit record written on behalf of the request carries this value.
var ActorCtxKey = contextKey("actor")

// TraceIDCtxKey stores the request trace id.
var TraceIDCtxKey = contextKey("traceID")

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorCtxKey, actor)
}

// GetActorFromContext returns the actor stored in ctx. ok is false when the
// value is missing, has an unexpected type or is empty.
func GetActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorCtxKey).(string)
	return actor, ok && actor != ""
}

// GetTraceIDFromContext returns the trace id stored in ctx, or "".
func GetTraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDCtxKey).(string)
	return traceID
}
