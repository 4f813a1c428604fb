// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the span
// streamer.
//
// Configuration is loaded from a single file named by a --config flag
// or, when the flag is absent, by the SPANSTREAM_CONFIG environment
// variable. There are no fallbacks and no automatic file search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to TLS for the
// collector connection unless its section says otherwise.
//
// Durations are written in [time.ParseDuration] form ("15s"). The
// ingest socket path expands ${HOME} and ${VAR:-default}.
//
// This package depends on no other spanstream packages.
package config
