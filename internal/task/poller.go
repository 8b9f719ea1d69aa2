package task

import (
	"context"
	"errors"
	"time"

	"github.com/genstudio/api/internal/model"
)

// DefaultPollInterval is used when a Poller has no interval configured.
const DefaultPollInterval = 5 * time.Second

// Snapshot is one observation of a remote task.
type Snapshot[T any] struct {
	Status  model.TaskStatus
	Payload T
}

// CheckFunc fetches the current status of one task.
type CheckFunc[T any] func(ctx context.Context) (Snapshot[T], error)

// Outcome is what a finished Run observed.
type Outcome[T any] struct {
	Snapshot Snapshot[T]
	Attempts int
}

// Poller repeatedly runs Check until it reports a terminal status.
//
// The first check runs immediately, the following ones every Interval.
// Check errors are reported to OnError and retried on the next tick unless
// they are marked Permanent. MaxAttempts of zero means no cap.
type Poller[T any] struct {
	Check       CheckFunc[T]
	Interval    time.Duration
	MaxAttempts int

	// OnSnapshot observes every successful, non-stale check.
	OnSnapshot func(attempt int, snap Snapshot[T])
	// OnError observes swallowed check errors.
	OnError func(attempt int, err error)
}

// Run polls until a terminal snapshot, a permanent error, the attempt cap or
// cancellation of ctx. A response that arrives after ctx was cancelled is dropped.
func (p *Poller[T]) Run(ctx context.Context) (Outcome[T], error) {
	var out Outcome[T]
	if p.Check == nil {
		return out, errors.New("task: poller has no check function")
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		out.Attempts++
		snap, err := p.Check(ctx)

		// stale: the caller stopped caring while the request was in flight
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}

		if err != nil {
			if IsPermanent(err) {
				return out, err
			}
			if p.OnError != nil {
				p.OnError(out.Attempts, err)
			}
		} else {
			out.Snapshot = snap
			if p.OnSnapshot != nil {
				p.OnSnapshot(out.Attempts, snap)
			}
			if IsTerminal(snap.Status) {
				return out, nil
			}
		}

		if p.MaxAttempts > 0 && out.Attempts >= p.MaxAttempts {
			return out, ErrAttemptsExhausted
		}

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-ticker.C:
		}
	}
}
