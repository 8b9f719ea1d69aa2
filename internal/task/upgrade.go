package task

import (
	"context"
	"fmt"
	"time"

	"github.com/genstudio/api/internal/model"
)

const (
	DefaultUpgradeAttempts = 12
	DefaultUpgradeInterval = 20 * time.Second
)

// UpgradeFunc performs one upgrade attempt and returns the upgraded artifact URL.
// An error carrying model.ErrorCodeProcessing means the artifact is not ready yet.
type UpgradeFunc func(ctx context.Context, attempt int) (string, error)

// UpgradeRetrier retries a "not ready yet" upgrade call a bounded number of times.
// It is separate from the main poll loop, which has no cap.
type UpgradeRetrier struct {
	Attempts int
	Interval time.Duration
	Notify   Notifier

	// Wait blocks for d or until ctx is done. Tests replace it.
	Wait func(ctx context.Context, d time.Duration) error
}

// NewUpgradeRetrier returns a retrier with 12 attempts at 20 second spacing.
func NewUpgradeRetrier(notify Notifier) *UpgradeRetrier {
	return &UpgradeRetrier{
		Attempts: DefaultUpgradeAttempts,
		Interval: DefaultUpgradeInterval,
		Notify:   notify,
	}
}

// Run calls fn until it succeeds, fails with a code other than PROCESSING,
// or the attempts are used up.
func (r *UpgradeRetrier) Run(ctx context.Context, fn UpgradeFunc) (string, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultUpgradeAttempts
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultUpgradeInterval
	}
	wait := r.Wait
	if wait == nil {
		wait = sleepCtx
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		url, err := fn(ctx, attempt)
		if err == nil {
			r.Notify.notify(Notice{Kind: NoticeSuccess, Message: "1080p video is ready", Attempt: attempt})
			return url, nil
		}

		switch CodeOf(err) {
		case model.ErrorCodeProcessing:
		case model.ErrorCodeVIPRequired:
			r.Notify.notify(Notice{Kind: NoticeUpsell, Message: err.Error(), Code: model.ErrorCodeVIPRequired, Attempt: attempt})
			return "", err
		default:
			r.Notify.notify(Notice{Kind: NoticeError, Message: err.Error(), Code: CodeOf(err), Attempt: attempt})
			return "", err
		}

		if attempt == attempts {
			break
		}
		if attempt == 1 || attempt%3 == 0 {
			r.Notify.notify(Notice{
				Kind:    NoticeInfo,
				Message: fmt.Sprintf("1080p video is still processing (attempt %d/%d)", attempt, attempts),
				Code:    model.ErrorCodeProcessing,
				Attempt: attempt,
			})
		}

		if err := wait(ctx, interval); err != nil {
			return "", err
		}
	}

	r.Notify.notify(Notice{Kind: NoticeError, Message: ErrUpgradeTimeout.Message, Code: ErrUpgradeTimeout.Code, Attempt: attempts})
	return "", ErrUpgradeTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
