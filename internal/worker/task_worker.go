package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/internal/task"
)

// Broadcaster pushes task updates to live subscribers. *websocket.Hub satisfies it.
type Broadcaster interface {
	BroadcastProgress(taskID string, status model.TaskStatus, attempt int)
	BroadcastComplete(taskID string, artifacts []model.Artifact)
	BroadcastError(taskID string, code, message string)
}

// TaskWorker polls the upstream provider of a submitted task until it settles.
type TaskWorker struct {
	tasks       *service.TaskService
	providers   *provider.Registry
	hub         Broadcaster
	maxAttempts int
	logger      *zap.Logger
}

// NewTaskWorker creates a poll worker. maxAttempts of zero polls until the
// asynq task timeout cancels the context.
func NewTaskWorker(tasks *service.TaskService, providers *provider.Registry, hub Broadcaster, maxAttempts int, logger *zap.Logger) *TaskWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskWorker{
		tasks:       tasks,
		providers:   providers,
		hub:         hub,
		maxAttempts: maxAttempts,
		logger:      logger.Named("worker"),
	}
}

// ProcessTask handles generation:poll tasks.
func (w *TaskWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.PollPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal poll payload: %v: %w", err, asynq.SkipRetry)
	}

	log := w.logger.With(zap.String("task_id", payload.TaskID))

	rec, err := w.tasks.Record(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			log.Info("task gone before polling, skipping")
			return nil
		}
		return err
	}
	if rec.Terminal() {
		return nil
	}
	log = log.With(zap.String("provider", rec.Provider), zap.String("provider_task_id", rec.ProviderTaskID))

	p, err := w.providers.Get(rec.Provider)
	if err != nil {
		w.fail(ctx, rec.ID, &model.TaskError{Code: model.ErrorCodeGenerationFailed, Message: "Provider is no longer available"})
		return nil
	}

	if _, err := w.tasks.MarkProcessing(ctx, rec.ID); err != nil {
		log.Warn("failed to mark task processing", zap.Error(err))
	}
	w.hub.BroadcastProgress(rec.ID, model.TaskStatusProcessing, 0)
	log.Info("polling started")

	poller := &task.Poller[*model.StatusResponse]{
		Check: func(ctx context.Context) (task.Snapshot[*model.StatusResponse], error) {
			resp, err := p.Status(ctx, rec.ProviderTaskID)
			if err != nil {
				return task.Snapshot[*model.StatusResponse]{}, err
			}
			return task.Snapshot[*model.StatusResponse]{Status: task.Normalize(resp.Status), Payload: resp}, nil
		},
		Interval:    w.providers.Interval(rec.Provider),
		MaxAttempts: w.maxAttempts,
		OnSnapshot: func(attempt int, snap task.Snapshot[*model.StatusResponse]) {
			if !task.IsTerminal(snap.Status) {
				w.hub.BroadcastProgress(rec.ID, snap.Status, attempt)
			}
		},
		OnError: func(attempt int, err error) {
			log.Warn("status check failed", zap.Int("attempt", attempt), zap.Error(err))
		},
	}

	out, err := poller.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// shutdown; asynq hands the task to the next worker
		return err
	case errors.Is(err, task.ErrAttemptsExhausted), errors.Is(err, context.DeadlineExceeded):
		log.Warn("polling gave up", zap.Int("attempts", out.Attempts), zap.Error(err))
		w.fail(context.WithoutCancel(ctx), rec.ID, &model.TaskError{Code: model.ErrorCodeTimeout, Message: "Generation timed out"})
		return nil
	default:
		log.Warn("polling stopped", zap.Int("attempts", out.Attempts), zap.Error(err))
		w.fail(ctx, rec.ID, &model.TaskError{Code: model.ErrorCodeGenerationFailed, Message: err.Error()})
		return nil
	}

	resp := out.Snapshot.Payload
	if out.Snapshot.Status == model.TaskStatusFailed {
		w.fail(ctx, rec.ID, task.FailureOf(resp))
		return nil
	}

	artifacts, err := task.ResolveArtifacts(resp)
	if err != nil {
		w.fail(ctx, rec.ID, task.ErrResultsUnavailable)
		return nil
	}

	done, err := w.tasks.CompleteTask(ctx, rec.ID, artifacts)
	if err != nil {
		log.Error("failed to store result", zap.Error(err))
		return err
	}
	w.announce(done)
	log.Info("polling finished", zap.Int("attempts", out.Attempts), zap.Int("artifacts", len(artifacts)))
	return nil
}

func (w *TaskWorker) fail(ctx context.Context, taskID string, taskErr *model.TaskError) {
	rec, err := w.tasks.FailTask(ctx, taskID, taskErr)
	if err != nil {
		w.logger.Error("failed to mark task failed", zap.String("task_id", taskID), zap.Error(err))
		w.hub.BroadcastError(taskID, taskErr.Code, taskErr.Message)
		return
	}
	w.announce(rec)
}

// announce broadcasts whatever terminal state the record settled in, which
// may differ from the one requested when another writer got there first.
func (w *TaskWorker) announce(rec *model.TaskRecord) {
	switch rec.Status {
	case model.RemoteStatusCompleted:
		w.hub.BroadcastComplete(rec.ID, rec.Result)
	case model.RemoteStatusFailed:
		code, msg := model.ErrorCodeGenerationFailed, "Generation failed"
		if rec.Error != nil {
			code, msg = rec.Error.Code, rec.Error.Message
		}
		w.hub.BroadcastError(rec.ID, code, msg)
	}
}
