// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper shared by the span
// streamer binaries: reporting the error returned by run() before the
// structured logger exists, then exiting non-zero.
package process
