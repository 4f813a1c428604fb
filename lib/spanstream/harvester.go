// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spanstream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/spanstream/lib/clock"
)

// StatsSource is the buffer's loss-counting side channel.
// *streambuffer.Buffer implements it.
type StatsSource interface {
	Stats() (seen, dropped uint64)
	Len() int
}

// Harvester periodically reads and resets a StatsSource's counters and
// folds them into cumulative Prometheus counters. Since Stats resets
// on read, the Harvester must be the only caller.
type Harvester struct {
	source   StatsSource
	interval time.Duration
	clock    clock.Clock
	metrics  *Metrics
	logger   *slog.Logger
}

// NewHarvester returns a Harvester reading source every interval.
func NewHarvester(source StatsSource, interval time.Duration, clk clock.Clock, metrics *Metrics, logger *slog.Logger) (*Harvester, error) {
	if source == nil {
		return nil, errors.New("harvester: source is required")
	}
	if interval <= 0 {
		return nil, errors.New("harvester: interval must be positive")
	}
	if clk == nil || metrics == nil || logger == nil {
		return nil, errors.New("harvester: clock, metrics, and logger are required")
	}
	return &Harvester{
		source:   source,
		interval: interval,
		clock:    clk,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run harvests every interval until ctx is cancelled, then harvests
// once more so the final counts are not lost.
func (h *Harvester) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Harvest()
		case <-ctx.Done():
			h.Harvest()
			return
		}
	}
}

// Harvest reads one seen/dropped pair, adds it to the counters, and
// returns it.
func (h *Harvester) Harvest() (seen, dropped uint64) {
	seen, dropped = h.source.Stats()
	queued := h.source.Len()

	h.metrics.Seen.Add(float64(seen))
	h.metrics.Dropped.Add(float64(dropped))
	h.metrics.Queued.Set(float64(queued))

	if dropped > 0 {
		h.logger.Warn("span buffer overflowed, oldest spans dropped",
			"seen", seen,
			"dropped", dropped,
			"buffer_entries", queued,
		)
	} else {
		h.logger.Debug("span buffer stats",
			"seen", seen,
			"buffer_entries", queued,
		)
	}
	return seen, dropped
}
