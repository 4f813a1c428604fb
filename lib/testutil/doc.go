// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for spanstream
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the timeout safety valve
// (select with a time.After fallback) so that a broken producer or
// consumer fails the test instead of hanging it. [RequireEventually]
// polls a condition for state that is only observable through
// counters. [RequireNoReceive] is the negative form of RequireReceive:
// it asserts that a goroutine stays blocked for a short window. These
// are the only helpers that use wall-clock time; loops
// under test take a lib/clock Clock instead.
//
// [SocketDir] returns a short temporary directory for Unix domain
// sockets, whose paths are limited to 108 bytes.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
