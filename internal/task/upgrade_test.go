package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/model"
)

type recordedRun struct {
	notices []Notice
	waits   []time.Duration
}

func newTestRetrier(rec *recordedRun) *UpgradeRetrier {
	r := NewUpgradeRetrier(func(n Notice) { rec.notices = append(rec.notices, n) })
	r.Wait = func(ctx context.Context, d time.Duration) error {
		rec.waits = append(rec.waits, d)
		return ctx.Err()
	}
	return r
}

func notProcessing() error {
	return &model.TaskError{Code: model.ErrorCodeProcessing, Message: "video is still processing"}
}

func kinds(notices []Notice) []NoticeKind {
	out := make([]NoticeKind, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Kind)
	}
	return out
}

func TestUpgradeSucceedsOnSixthAttempt(t *testing.T) {
	rec := &recordedRun{}
	r := newTestRetrier(rec)

	calls := 0
	url, err := r.Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt <= 5 {
			return "", notProcessing()
		}
		return "https://cdn/1080p.mp4", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/1080p.mp4", url)
	assert.Equal(t, 6, calls)
	require.Len(t, rec.waits, 5)
	for _, d := range rec.waits {
		assert.Equal(t, 20*time.Second, d)
	}
	// info at attempt 1 and 3, success at the end
	assert.Equal(t, []NoticeKind{NoticeInfo, NoticeInfo, NoticeSuccess}, kinds(rec.notices))
	assert.Equal(t, 1, rec.notices[0].Attempt)
	assert.Equal(t, 3, rec.notices[1].Attempt)
}

func TestUpgradeGivesUpAfterTwelveAttempts(t *testing.T) {
	rec := &recordedRun{}
	r := newTestRetrier(rec)

	calls := 0
	_, err := r.Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", notProcessing()
	})

	assert.ErrorIs(t, err, ErrUpgradeTimeout)
	assert.Equal(t, 12, calls)
	assert.Len(t, rec.waits, 11)

	last := rec.notices[len(rec.notices)-1]
	assert.Equal(t, NoticeError, last.Kind)
	assert.Equal(t, model.ErrorCodeTimeout, last.Code)

	var infoAttempts []int
	for _, n := range rec.notices {
		if n.Kind == NoticeInfo {
			infoAttempts = append(infoAttempts, n.Attempt)
		}
	}
	assert.Equal(t, []int{1, 3, 6, 9}, infoAttempts)
}

func TestUpgradeVIPRequiredIsUpsell(t *testing.T) {
	rec := &recordedRun{}
	r := newTestRetrier(rec)

	_, err := r.Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		return "", &model.TaskError{Code: model.ErrorCodeVIPRequired, Message: "upgrade to VIP"}
	})

	assert.True(t, HasCode(err, model.ErrorCodeVIPRequired))
	assert.Equal(t, []NoticeKind{NoticeUpsell}, kinds(rec.notices))
	assert.Empty(t, rec.waits)
}

func TestUpgradeOtherErrorStops(t *testing.T) {
	rec := &recordedRun{}
	r := newTestRetrier(rec)

	calls := 0
	_, err := r.Run(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", errors.New("task not found")
	})

	assert.EqualError(t, err, "task not found")
	assert.Equal(t, 1, calls)
	assert.Equal(t, []NoticeKind{NoticeError}, kinds(rec.notices))
}

func TestUpgradeCancelledWhileWaiting(t *testing.T) {
	r := NewUpgradeRetrier(nil)
	r.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, func(ctx context.Context, attempt int) (string, error) {
		return "", notProcessing()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
	wrapped := errors.Join(errors.New("ctx"), &model.TaskError{Code: "X", Message: "m"})
	assert.Equal(t, "X", CodeOf(wrapped))
	assert.False(t, HasCode(nil, "X"))
}
