package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/task"
)

// MaxPromptLength bounds prompts of text driven modes.
const MaxPromptLength = 5000

var (
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrTaskReplaced       = errors.New("task was cancelled or replaced")
	ErrNoCompletedVideo   = errors.New("no completed video to upgrade")
)

// ValidationError is a request rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) ErrorCode() string {
	return "VALIDATION_ERROR"
}

// Request is what the user composed in the workspace.
type Request struct {
	Provider string
	Type     model.TaskType
	Prompt   string

	// ImageURLs are inputs that already live somewhere, e.g. a prior result.
	ImageURLs []string
	// Files are local images uploaded before submission.
	Files []LocalFile

	Model       string
	Quality     string
	AspectRatio string
	NumImages   int
	Duration    int
	Scale       int
}

// State is the projection rendered by display components.
type State struct {
	Status model.TaskStatus
	// Busy disables the submit control.
	Busy bool
	Task *model.Task
}

// Options tunes a Workspace. Zero values pick the defaults.
type Options struct {
	// PollInterval overrides the per type default (3s for images, 10s for videos).
	PollInterval time.Duration
	// MaxPollAttempts caps the main poll loop. Zero polls until a terminal status.
	MaxPollAttempts int
	// Upgrade configures the 1080p retrier. Its Notify defaults to the workspace notifier.
	Upgrade *task.UpgradeRetrier
	Notify  task.Notifier
	Logger  *zap.Logger
}

// Workspace owns exactly one current task and at most one poll loop.
//
// Every Start and Cancel bumps a generation counter. Poll results and
// submission replies carry the generation they were issued for and are
// dropped when it no longer matches.
type Workspace struct {
	api      *API
	uploader *Uploader
	guard    *CreditGuard
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	gen        uint64
	current    *model.Task
	submitting bool
	stop       context.CancelFunc
	done       chan struct{}
	listeners  []func(State)
}

func NewWorkspace(api *API, uploader *Uploader, guard *CreditGuard, opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Upgrade == nil {
		opts.Upgrade = task.NewUpgradeRetrier(nil)
	}
	return &Workspace{
		api:      api,
		uploader: uploader,
		guard:    guard,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// OnChange registers a listener for state changes. Listeners run on the
// goroutine that caused the change and must not call Start or Wait.
func (w *Workspace) OnChange(fn func(State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// State returns the current projection.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Workspace) stateLocked() State {
	s := State{Status: model.TaskStatusIdle, Busy: w.submitting}
	if w.current != nil {
		s.Status = w.current.Status
		s.Task = w.current.Clone()
		if s.Status == model.TaskStatusUploading || s.Status == model.TaskStatusProcessing {
			s.Busy = true
		}
	}
	return s
}

func (w *Workspace) emit() {
	w.mu.Lock()
	s := w.stateLocked()
	listeners := append([]func(State){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func (w *Workspace) notify(n task.Notice) {
	if w.opts.Notify != nil {
		w.opts.Notify(n)
	}
}

// Start validates and submits req, then polls the task in the background.
// A previous poll loop is stopped and has exited before the new task is
// submitted. The returned task is a snapshot in the processing state.
func (w *Workspace) Start(ctx context.Context, req Request) (*model.Task, error) {
	if err := w.validate(req); err != nil {
		w.notify(task.Notice{Kind: task.NoticeError, Message: err.Error(), Code: task.CodeOf(err)})
		return nil, err
	}
	if err := w.guard.Check(req.Type, req.NumImages); err != nil {
		w.notifyGuard(err)
		return nil, err
	}

	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	w.submitting = true
	w.gen++
	gen := w.gen
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	prev := w.done
	now := w.now()
	w.current = &model.Task{
		ID:        model.PendingTaskID,
		Type:      req.Type,
		Provider:  req.Provider,
		Status:    model.TaskStatusIdle,
		Input:     req.input(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
		w.emit()
	}()

	if prev != nil {
		<-prev
	}
	w.emit()

	urls, err := w.resolveInputs(ctx, gen, req)
	if err != nil {
		if !w.abandon(gen) || errors.Is(err, ErrTaskReplaced) {
			return nil, ErrTaskReplaced
		}
		w.notify(task.Notice{Kind: task.NoticeError, Message: err.Error(), Code: task.CodeOf(err)})
		return nil, err
	}

	sreq := &model.SubmitRequest{
		Type:        req.Type,
		Prompt:      strings.TrimSpace(req.Prompt),
		ImageURLs:   urls,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		Quality:     req.Quality,
		NumImages:   req.NumImages,
		Duration:    req.Duration,
		Scale:       req.Scale,
	}
	resp, err := w.api.Submit(ctx, req.Provider, sreq)
	if err != nil {
		if !w.abandon(gen) {
			return nil, ErrTaskReplaced
		}
		w.handleSubmitError(ctx, err)
		return nil, err
	}

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		w.logger.Debug("dropping submission of replaced task", zap.String("task_id", resp.TaskID))
		return nil, ErrTaskReplaced
	}
	t := w.current
	t.ID = resp.TaskID
	t.Status = model.TaskStatusProcessing
	t.Input.ImageURLs = append([]string(nil), urls...)
	t.CreditsUsed = resp.CreditsUsed
	t.UpdatedAt = w.now()
	pollCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	w.stop = stop
	w.done = done
	snapshot := t.Clone()
	w.mu.Unlock()

	w.guard.SetBalance(resp.RemainingCredits)
	w.emit()

	go w.poll(pollCtx, gen, snapshot.Provider, snapshot.ID, snapshot.Type, done)
	return snapshot, nil
}

// Cancel stops polling and returns the workspace to idle. A submission
// already in flight is not aborted; its reply is dropped.
func (w *Workspace) Cancel() {
	w.mu.Lock()
	w.gen++
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	changed := w.current != nil
	w.current = nil
	w.mu.Unlock()

	if changed {
		w.emit()
	}
}

// Reset clears a finished task. It does nothing while a task is active.
func (w *Workspace) Reset() {
	w.mu.Lock()
	if w.current == nil || !task.IsTerminal(w.current.Status) {
		w.mu.Unlock()
		return
	}
	w.current = nil
	w.mu.Unlock()
	w.emit()
}

// Wait blocks until the current poll loop has exited.
func (w *Workspace) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upgrade1080p requests the 1080p rendition of the current completed video,
// retrying a bounded number of times while the server reports PROCESSING.
func (w *Workspace) Upgrade1080p(ctx context.Context) (string, error) {
	w.mu.Lock()
	t := w.current.Clone()
	w.mu.Unlock()

	if t == nil || t.Status != model.TaskStatusCompleted || !t.Type.IsVideo() {
		return "", ErrNoCompletedVideo
	}

	r := *w.opts.Upgrade
	if r.Notify == nil {
		r.Notify = w.opts.Notify
	}
	return r.Run(ctx, func(ctx context.Context, attempt int) (string, error) {
		w.logger.Debug("requesting 1080p video", zap.String("task_id", t.ID), zap.Int("attempt", attempt))
		return w.api.Upgrade1080p(ctx, t.Provider, t.ID)
	})
}

// History lists stored tasks of a provider.
func (w *Workspace) History(ctx context.Context, provider string, page, limit int) (*model.HistoryResponse, error) {
	return w.api.History(ctx, provider, page, limit)
}

// DeleteHistory removes a stored task.
func (w *Workspace) DeleteHistory(ctx context.Context, provider, taskID string) error {
	return w.api.DeleteHistory(ctx, provider, taskID)
}

func (w *Workspace) validate(req Request) error {
	if strings.TrimSpace(req.Provider) == "" {
		return &ValidationError{Field: "provider", Message: "provider is required"}
	}
	known := false
	for _, t := range model.ValidTaskTypes {
		if t == req.Type {
			known = true
			break
		}
	}
	if !known {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown generation type %q", req.Type)}
	}

	prompt := strings.TrimSpace(req.Prompt)
	if req.Type.NeedsPrompt() && prompt == "" {
		return &ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return &ValidationError{Field: "prompt", Message: fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength)}
	}
	if req.Type.NeedsImage() && len(req.ImageURLs)+len(req.Files) == 0 {
		return &ValidationError{Field: "images", Message: "at least one image is required"}
	}
	if req.NumImages < 0 || req.NumImages > 4 {
		return &ValidationError{Field: "num_images", Message: "num_images must be between 1 and 4"}
	}
	for _, f := range req.Files {
		if err := w.uploader.Validate(f); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workspace) notifyGuard(err error) {
	var insufficient *InsufficientCreditsError
	switch {
	case errors.Is(err, ErrSignInRequired):
		w.notify(task.Notice{Kind: task.NoticeSignIn, Message: err.Error()})
	case errors.As(err, &insufficient):
		w.notify(task.Notice{Kind: task.NoticePurchase, Message: err.Error(), Code: model.ErrorCodeInsufficientCredits})
	default:
		w.notify(task.Notice{Kind: task.NoticeError, Message: err.Error()})
	}
}

// handleSubmitError surfaces a server rejection. An out-of-credits reply
// means the cached balance was stale, so it is refreshed.
func (w *Workspace) handleSubmitError(ctx context.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == model.ErrorCodeInsufficientCredits || apiErr.StatusCode == http.StatusPaymentRequired:
			w.notify(task.Notice{Kind: task.NoticePurchase, Message: apiErr.Error(), Code: model.ErrorCodeInsufficientCredits})
			if rerr := w.guard.Refresh(ctx); rerr != nil {
				w.logger.Warn("failed to refresh credits", zap.Error(rerr))
			}
			return
		case apiErr.StatusCode == http.StatusUnauthorized:
			w.notify(task.Notice{Kind: task.NoticeSignIn, Message: apiErr.Error(), Code: apiErr.Code})
			return
		}
	}
	w.notify(task.Notice{Kind: task.NoticeError, Message: err.Error(), Code: task.CodeOf(err)})
}

// resolveInputs uploads local files and checks remote URLs. The task is
// in the uploading state while this runs.
func (w *Workspace) resolveInputs(ctx context.Context, gen uint64, req Request) ([]string, error) {
	if len(req.Files)+len(req.ImageURLs) == 0 {
		return nil, nil
	}
	if !w.update(gen, func(t *model.Task) { t.Status = model.TaskStatusUploading }) {
		return nil, ErrTaskReplaced
	}

	urls := make([]string, 0, len(req.ImageURLs)+len(req.Files))
	for _, raw := range req.ImageURLs {
		u, err := w.uploader.ResolveURL(ctx, raw)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	for _, f := range req.Files {
		u, err := w.uploader.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	if !w.isCurrent(gen) {
		return nil, ErrTaskReplaced
	}
	return urls, nil
}

// update mutates the current task if gen is still current.
func (w *Workspace) update(gen uint64, fn func(*model.Task)) bool {
	w.mu.Lock()
	if w.gen != gen || w.current == nil {
		w.mu.Unlock()
		return false
	}
	fn(w.current)
	w.current.UpdatedAt = w.now()
	w.mu.Unlock()
	w.emit()
	return true
}

func (w *Workspace) isCurrent(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen
}

// abandon drops the pending task after a failed upload or submission.
func (w *Workspace) abandon(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return false
	}
	w.current = nil
	return true
}

func (w *Workspace) interval(t model.TaskType) time.Duration {
	if w.opts.PollInterval > 0 {
		return w.opts.PollInterval
	}
	if t.IsVideo() {
		return 10 * time.Second
	}
	return 3 * time.Second
}

func (w *Workspace) poll(ctx context.Context, gen uint64, provider, taskID string, typ model.TaskType, done chan struct{}) {
	defer close(done)

	log := w.logger.With(zap.String("task_id", taskID), zap.String("provider", provider))
	p := &task.Poller[*model.StatusResponse]{
		Interval:    w.interval(typ),
		MaxAttempts: w.opts.MaxPollAttempts,
		Check: func(ctx context.Context) (task.Snapshot[*model.StatusResponse], error) {
			resp, err := w.api.Status(ctx, provider, taskID)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && !apiErr.Retryable() {
					return task.Snapshot[*model.StatusResponse]{}, task.Permanent(err)
				}
				return task.Snapshot[*model.StatusResponse]{}, err
			}
			return task.Snapshot[*model.StatusResponse]{Status: task.Normalize(resp.Status), Payload: resp}, nil
		},
		OnError: func(attempt int, err error) {
			log.Debug("status check failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
	}

	out, err := p.Run(ctx)
	if ctx.Err() != nil {
		return
	}

	var (
		artifacts []model.Artifact
		failure   *model.TaskError
		refunded  int
	)
	switch {
	case errors.Is(err, task.ErrAttemptsExhausted):
		failure = &model.TaskError{Code: model.ErrorCodeTimeout, Message: "generation is taking too long, please check the history later"}
	case err != nil:
		failure = &model.TaskError{Code: task.CodeOf(err), Message: err.Error()}
		if failure.Code == "" {
			failure.Code = model.ErrorCodeGenerationFailed
		}
	case out.Snapshot.Status == model.TaskStatusFailed:
		failure = task.FailureOf(out.Snapshot.Payload)
		refunded = out.Snapshot.Payload.CreditsRefunded
	default:
		artifacts, err = task.ResolveArtifacts(out.Snapshot.Payload)
		if err != nil {
			e := *task.ErrResultsUnavailable
			failure = &e
		}
	}

	applied := w.update(gen, func(t *model.Task) {
		if failure != nil {
			t.Status = model.TaskStatusFailed
			t.Error = failure
			t.CreditsRefunded = refunded
			return
		}
		t.Status = model.TaskStatusCompleted
		t.Result = artifacts
	})
	if !applied {
		log.Debug("dropping result of replaced task")
		return
	}

	if failure != nil {
		log.Info("generation failed", zap.String("code", failure.Code), zap.String("error", failure.Message), zap.Int("checks", out.Attempts))
		w.notify(task.Notice{Kind: task.NoticeError, Message: failure.Message, Code: failure.Code})
	} else {
		log.Info("generation completed", zap.Int("artifacts", len(artifacts)), zap.Int("checks", out.Attempts))
		w.notify(task.Notice{Kind: task.NoticeSuccess, Message: "Generation completed"})
	}

	if err := w.guard.Refresh(ctx); err != nil {
		log.Warn("failed to refresh credits", zap.Error(err))
	}
}

func (r Request) input() model.TaskInput {
	return model.TaskInput{
		Prompt:      strings.TrimSpace(r.Prompt),
		ImageURLs:   r.ImageURLs,
		Model:       r.Model,
		Quality:     r.Quality,
		AspectRatio: r.AspectRatio,
		NumImages:   r.NumImages,
		Duration:    r.Duration,
		Scale:       r.Scale,
	}.Clone()
}
