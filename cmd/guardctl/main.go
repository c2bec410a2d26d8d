// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Command guardctl is the operator tool of phi-guard: schema migrations,
// audit chain verification, key rotation and retirement, the re-encryption
// sweep, key generation and reviewer tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "guardctl:", err)
		stop()
		os.Exit(1)
	}
}
