// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// recordingTB captures Fatalf instead of stopping the test.
type recordingTB struct {
	failures []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestRequireNoReceive(t *testing.T) {
	quiet := make(chan int)
	var silent recordingTB
	RequireNoReceive(&silent, (<-chan int)(quiet), 10*time.Millisecond, "quiet channel")
	if len(silent.failures) != 0 {
		t.Errorf("quiet channel reported failures: %v", silent.failures)
	}

	ready := make(chan int, 1)
	ready <- 7
	var loud recordingTB
	RequireNoReceive(&loud, (<-chan int)(ready), time.Second, "ready channel")
	if len(loud.failures) != 1 {
		t.Errorf("ready channel reported %d failures, want 1", len(loud.failures))
	}

	closed := make(chan int)
	close(closed)
	var shut recordingTB
	RequireNoReceive(&shut, (<-chan int)(closed), time.Second, "closed channel")
	if len(shut.failures) != 1 {
		t.Errorf("closed channel reported %d failures, want 1", len(shut.failures))
	}
}
