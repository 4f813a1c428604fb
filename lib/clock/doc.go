// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets the streamer's loops be driven by a fake clock in
// tests.
//
// The reconnect wait and the stats harvest ticker take a Clock rather
// than calling time.After or time.NewTicker. Production passes Real();
// tests pass Fake() and move time with Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go harvester.Run(ctx)
//	fake.WaitForTimers(1) // the ticker is registered
//	fake.Advance(time.Minute)
package clock
