// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// running multiple workers in a unified way, plus the two jobs of the key
// lifecycle: the re-encryption sweep and the rotation check.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
// It defines a single Run method that starts the worker's execution.
//
// Implementations are expected to block until ctx is done and then return
// nil. Any other returned error stops every worker of the same [Workers].
type Worker interface {
	Run(ctx context.Context) error
}

// Func adapts a plain function, such as a server's run loop, to [Worker].
type Func func(ctx context.Context) error

func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}
