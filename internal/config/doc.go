// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package config provides configuration loading, merging, and validation
// for the phi-guard server and the guardctl CLI.
//
// Configuration is assembled from multiple sources. For every field the
// first source with a non-zero value wins:
//  1. Environment variables
//  2. Command-line flags (server only)
//  3. JSON config file
//  4. Built-in defaults
//
// The entry points are [GetStructuredConfig] for the server and
// [LoadConfig] for programs that own their command line.
package config
