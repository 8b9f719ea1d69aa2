package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/task"
)

const (
	TaskTypePoll = "generation:poll"
	QueuePoll    = "poll"

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	maxPromptLength     = 5000
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUpstreamRejected = errors.New("provider rejected the task")
	ErrEnqueueFailed    = errors.New("failed to schedule task polling")
)

// ErrVIPRequired is returned by Upgrade1080p for accounts without the vip role.
var ErrVIPRequired = &model.TaskError{
	Code:    model.ErrorCodeVIPRequired,
	Message: "1080p downloads are available to VIP members",
}

// Enqueuer schedules background work. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskServiceOptions tunes a TaskService.
type TaskServiceOptions struct {
	RequireVIP  bool
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

// TaskService owns task records, their history index and the credit flow
// around submissions.
type TaskService struct {
	redis     *redis.Client
	enqueuer  Enqueuer
	providers *provider.Registry
	ledger    *credit.Ledger
	pricing   credit.Pricing

	requireVIP  bool
	taskTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewTaskService(
	redisClient *redis.Client,
	enqueuer Enqueuer,
	providers *provider.Registry,
	ledger *credit.Ledger,
	pricing credit.Pricing,
	opts TaskServiceOptions,
) *TaskService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricing == nil {
		pricing = credit.DefaultPricing()
	}
	return &TaskService{
		redis:       redisClient,
		enqueuer:    enqueuer,
		providers:   providers,
		ledger:      ledger,
		pricing:     pricing,
		requireVIP:  opts.RequireVIP,
		taskTimeout: opts.TaskTimeout,
		logger:      logger.Named("tasks"),
		now:         time.Now,
	}
}

// Pricing returns a copy of the active price list.
func (s *TaskService) Pricing() credit.Pricing {
	return s.pricing.Copy()
}

// Balance returns the caller's credit balance.
func (s *TaskService) Balance(ctx context.Context, userID string) (int, error) {
	return s.ledger.Balance(ctx, userID)
}

// Submit charges the user, hands the task to the provider and schedules polling.
// Credits are returned when the provider rejects the task or polling cannot be scheduled.
func (s *TaskService) Submit(ctx context.Context, userID, providerName string, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	if !p.Supports(req.Type) {
		return nil, fmt.Errorf("%w: %s cannot run %s", provider.ErrUnsupportedType, providerName, req.Type)
	}
	if err := checkInputs(req); err != nil {
		return nil, err
	}

	cost, err := s.pricing.Cost(req.Type, req.NumImages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	remaining, err := s.ledger.Deduct(ctx, userID, cost)
	if err != nil {
		return nil, err
	}

	taskID := uuid.New().String()
	log := s.logger.With(zap.String("task_id", taskID), zap.String("provider", providerName), zap.String("user_id", userID))

	providerTaskID, err := p.Submit(ctx, req)
	if err != nil {
		log.Warn("provider rejected task", zap.Error(err))
		s.refund(ctx, userID, taskID, cost)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamRejected, err)
	}

	now := s.now()
	rec := &model.TaskRecord{
		ID:             taskID,
		UserID:         userID,
		Provider:       providerName,
		ProviderTaskID: providerTaskID,
		Type:           req.Type,
		Status:         model.RemoteStatusPending,
		Input:          req.Input(),
		CreditsUsed:    cost,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.saveRecord(ctx, rec); err != nil {
		s.refund(ctx, userID, taskID, cost)
		return nil, fmt.Errorf("failed to save task: %w", err)
	}
	if err := s.indexHistory(ctx, rec); err != nil {
		log.Warn("failed to index history", zap.Error(err))
	}

	if err := s.enqueuePoll(ctx, taskID); err != nil {
		log.Error("failed to enqueue poll", zap.Error(err))
		if _, ferr := s.FailTask(ctx, taskID, &model.TaskError{Code: model.ErrorCodeGenerationFailed, Message: "Failed to schedule generation"}); ferr != nil {
			log.Error("failed to fail task", zap.Error(ferr))
		}
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	log.Info("task submitted", zap.String("provider_task_id", providerTaskID), zap.Int("credits", cost))
	return &model.SubmitResponse{
		Success:          true,
		TaskID:           taskID,
		CreditsUsed:      cost,
		RemainingCredits: remaining,
	}, nil
}

func checkInputs(req *model.SubmitRequest) error {
	prompt := strings.TrimSpace(req.Prompt)
	if req.Type.NeedsPrompt() && prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if len([]rune(prompt)) > maxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidRequest, maxPromptLength)
	}
	if req.Type.NeedsImage() && len(req.ImageURLs) == 0 {
		return fmt.Errorf("%w: an input image is required", ErrInvalidRequest)
	}
	return nil
}

func (s *TaskService) refund(ctx context.Context, userID, taskID string, amount int) {
	if _, _, err := s.ledger.Refund(ctx, userID, taskID, amount); err != nil {
		s.logger.Error("refund failed", zap.String("task_id", taskID), zap.Int("credits", amount), zap.Error(err))
	}
}

func (s *TaskService) enqueuePoll(ctx context.Context, taskID string) error {
	payload, err := json.Marshal(model.PollPayload{TaskID: taskID})
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(QueuePoll),
		asynq.MaxRetry(3),
		asynq.TaskID(taskID),
		asynq.Retention(24 * time.Hour),
	}
	if s.taskTimeout > 0 {
		opts = append(opts, asynq.Timeout(s.taskTimeout))
	}
	_, err = s.enqueuer.EnqueueContext(ctx, asynq.NewTask(TaskTypePoll, payload), opts...)
	return err
}

// Status returns the task as served by the status endpoint. Tasks of other
// users or other providers are reported as not found.
func (s *TaskService) Status(ctx context.Context, userID, providerName, taskID string) (*model.StatusResponse, error) {
	rec, err := s.ownedRecord(ctx, userID, providerName, taskID)
	if err != nil {
		return nil, err
	}
	return StatusOf(rec), nil
}

// Record loads a task by id without ownership checks. Used by the worker.
func (s *TaskService) Record(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	return s.getRecord(ctx, taskID)
}

func (s *TaskService) ownedRecord(ctx context.Context, userID, providerName, taskID string) (*model.TaskRecord, error) {
	rec, err := s.getRecord(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID || rec.Provider != providerName {
		return nil, ErrTaskNotFound
	}
	return rec, nil
}

// History returns one page of the caller's tasks for a provider, newest first.
func (s *TaskService) History(ctx context.Context, userID, providerName string, page, limit int) (*model.HistoryResponse, error) {
	if _, err := s.providers.Get(providerName); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, total, err := s.historyPage(ctx, userID, providerName, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	items := make([]model.StatusResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, *StatusOf(rec))
	}
	return &model.HistoryResponse{
		Success: true,
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: int64(page*limit) < total,
	}, nil
}

// DeleteHistory removes one of the caller's tasks.
func (s *TaskService) DeleteHistory(ctx context.Context, userID, providerName, taskID string) error {
	rec, err := s.ownedRecord(ctx, userID, providerName, taskID)
	if err != nil {
		return err
	}
	return s.removeRecord(ctx, rec)
}

// MarkProcessing moves a pending task to processing.
func (s *TaskService) MarkProcessing(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	return s.updateRecord(ctx, taskID, func(rec *model.TaskRecord) (bool, error) {
		if rec.Status != model.RemoteStatusPending {
			return false, nil
		}
		rec.Status = model.RemoteStatusProcessing
		return true, nil
	})
}

// CompleteTask stores the artifacts of a task. Terminal tasks are left unchanged.
func (s *TaskService) CompleteTask(ctx context.Context, taskID string, artifacts []model.Artifact) (*model.TaskRecord, error) {
	if len(artifacts) == 0 {
		return s.FailTask(ctx, taskID, task.ErrResultsUnavailable)
	}
	rec, err := s.updateRecord(ctx, taskID, func(rec *model.TaskRecord) (bool, error) {
		if rec.Terminal() {
			return false, nil
		}
		now := s.now()
		rec.Status = model.RemoteStatusCompleted
		rec.Result = append([]model.Artifact(nil), artifacts...)
		rec.Error = nil
		rec.CompletedAt = &now
		return true, nil
	})
	if err == nil {
		s.logger.Info("task completed", zap.String("task_id", taskID), zap.Int("artifacts", len(artifacts)))
	}
	return rec, err
}

// FailTask marks a task failed and refunds its credits exactly once.
func (s *TaskService) FailTask(ctx context.Context, taskID string, taskErr *model.TaskError) (*model.TaskRecord, error) {
	if taskErr == nil {
		taskErr = &model.TaskError{Code: model.ErrorCodeGenerationFailed, Message: "Generation failed"}
	}

	failed := false
	rec, err := s.updateRecord(ctx, taskID, func(rec *model.TaskRecord) (bool, error) {
		if rec.Terminal() {
			return false, nil
		}
		now := s.now()
		e := *taskErr
		rec.Status = model.RemoteStatusFailed
		rec.Error = &e
		rec.Result = nil
		rec.CompletedAt = &now
		failed = true
		return true, nil
	})
	if err != nil || !failed {
		return rec, err
	}

	s.logger.Info("task failed", zap.String("task_id", taskID), zap.String("reason", taskErr.Message))

	_, applied, rerr := s.ledger.Refund(ctx, rec.UserID, rec.ID, rec.CreditsUsed)
	if rerr != nil {
		s.logger.Error("refund failed", zap.String("task_id", taskID), zap.Error(rerr))
		return rec, nil
	}
	if !applied {
		return rec, nil
	}
	return s.updateRecord(ctx, taskID, func(rec *model.TaskRecord) (bool, error) {
		rec.CreditsRefunded = rec.CreditsUsed
		return true, nil
	})
}

// Upgrade1080p returns the 1080p rendition of a completed video task. While
// upstream is still rendering it returns a *model.TaskError with code PROCESSING.
func (s *TaskService) Upgrade1080p(ctx context.Context, userID string, vip bool, providerName, taskID string) (string, error) {
	rec, err := s.ownedRecord(ctx, userID, providerName, taskID)
	if err != nil {
		return "", err
	}
	if s.requireVIP && !vip {
		return "", ErrVIPRequired
	}
	if rec.HDVideoURL != "" {
		return rec.HDVideoURL, nil
	}
	if !rec.Type.IsVideo() {
		return "", provider.ErrUpgradeNotOffered
	}
	if rec.Status != model.RemoteStatusCompleted {
		return "", &model.TaskError{Code: model.ErrorCodeProcessing, Message: "video is still processing"}
	}

	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	up, ok := p.(provider.Upgrader)
	if !ok {
		return "", provider.ErrUpgradeNotOffered
	}

	url, err := up.Upgrade1080p(ctx, rec.ProviderTaskID)
	if err != nil {
		return "", err
	}

	if _, err := s.updateRecord(ctx, taskID, func(rec *model.TaskRecord) (bool, error) {
		rec.HDVideoURL = url
		return true, nil
	}); err != nil {
		s.logger.Warn("failed to store 1080p url", zap.String("task_id", taskID), zap.Error(err))
	}
	return url, nil
}

// StatusOf renders a record in the status endpoint vocabulary.
func StatusOf(rec *model.TaskRecord) *model.StatusResponse {
	resp := &model.StatusResponse{
		Success:         true,
		TaskID:          rec.ID,
		Type:            rec.Type,
		Status:          rec.Status,
		CreditsUsed:     rec.CreditsUsed,
		CreditsRefunded: rec.CreditsRefunded,
		Prompt:          rec.Input.Prompt,
		CreatedAt:       rec.CreatedAt.Unix(),
	}
	switch rec.Status {
	case model.RemoteStatusCompleted:
		resp.Result = task.StatusFromArtifacts(rec.Result)
		if rec.Type.IsVideo() && len(rec.Result) > 0 {
			resp.VideoURL = rec.Result[0].URL
		}
	case model.RemoteStatusFailed:
		if rec.Error != nil {
			resp.ErrorMessage = rec.Error.Message
			resp.ErrorCode = rec.Error.Code
		}
	}
	return resp
}
