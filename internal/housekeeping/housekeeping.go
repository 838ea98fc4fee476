// Package housekeeping provides the housekeeping service. It periodically
// removes processed sync updates that are past their retention period.
package housekeeping

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/weddingsync/internal/logging"
)

// Sweeper removes processed updates delivered more than retention ago.
type Sweeper interface {
	Sweep(ctx context.Context, retention time.Duration, dryRun bool) (int64, error)
}

// Housekeeping is the housekeeping service.
type Housekeeping struct {
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
	logger    logging.Logger
}

// New creates a new housekeeping instance.
func New(sweeper Sweeper, interval, retention time.Duration, logger logging.Logger) (*Housekeeping, error) {
	if interval <= 0 {
		return nil, errors.New("housekeeping interval must be positive")
	}
	if retention <= 0 {
		return nil, errors.New("housekeeping retention must be positive")
	}

	return &Housekeeping{
		sweeper:   sweeper,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}, nil
}

// Run sweeps once per interval until ctx is done. A failed sweep is logged
// and retried on the next tick.
func (h *Housekeeping) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if _, err := h.RunOnce(ctx); err != nil && ctx.Err() == nil {
			h.logger.Errorf("HSKP: sweep failed: %v", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// RunOnce performs a single sweep.
func (h *Housekeeping) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	count, err := h.sweeper.Sweep(ctx, h.retention, false)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		h.logger.Infof("HSKP: swept %d processed updates, %s", count, time.Since(start))
	}
	return count, nil
}
