package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
)

const (
	taskKeyPrefix    = "task:"
	historyKeyPrefix = "history:"
	taskTTL          = 7 * 24 * time.Hour
	maxUpdateRetries = 5
)

func taskKey(id string) string { return taskKeyPrefix + id }

func historyKey(userID, provider string) string {
	return historyKeyPrefix + userID + ":" + provider
}

func (s *TaskService) saveRecord(ctx context.Context, rec *model.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	return s.redis.Set(ctx, taskKey(rec.ID), data, taskTTL).Err()
}

func (s *TaskService) getRecord(ctx context.Context, id string) (*model.TaskRecord, error) {
	data, err := s.redis.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	var rec model.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &rec, nil
}

// updateRecord applies fn under WATCH so concurrent writers cannot lose an
// update. fn returns false to leave the record untouched.
func (s *TaskService) updateRecord(ctx context.Context, id string, fn func(rec *model.TaskRecord) (bool, error)) (*model.TaskRecord, error) {
	key := taskKey(id)
	var out *model.TaskRecord

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrTaskNotFound
			}
			return err
		}
		var rec model.TaskRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}

		changed, err := fn(&rec)
		if err != nil {
			return err
		}
		out = &rec
		if !changed {
			return nil
		}

		rec.UpdatedAt = s.now()
		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	return nil, fmt.Errorf("update task %s: too much contention", id)
}

// indexHistory adds a task to its owner's per-provider history, newest last by score.
func (s *TaskService) indexHistory(ctx context.Context, rec *model.TaskRecord) error {
	key := historyKey(rec.UserID, rec.Provider)
	pipe := s.redis.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	pipe.Expire(ctx, key, taskTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// historyPage returns one page of records, newest first. Members whose record
// expired are pruned from the index.
func (s *TaskService) historyPage(ctx context.Context, userID, provider string, page, limit int) ([]*model.TaskRecord, int64, error) {
	key := historyKey(userID, provider)

	total, err := s.redis.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, err
	}
	start := int64((page - 1) * limit)
	if start >= total {
		return nil, total, nil
	}

	ids, err := s.redis.ZRevRange(ctx, key, start, start+int64(limit)-1).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, total, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, err
	}

	records := make([]*model.TaskRecord, 0, len(values))
	var expired []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var rec model.TaskRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn("skipping unreadable history record", zap.String("task_id", ids[i]), zap.Error(err))
			continue
		}
		records = append(records, &rec)
	}

	if len(expired) > 0 {
		if err := s.redis.ZRem(ctx, key, expired...).Err(); err != nil {
			s.logger.Warn("failed to prune history", zap.Error(err))
		}
		total -= int64(len(expired))
	}
	return records, total, nil
}

func (s *TaskService) removeRecord(ctx context.Context, rec *model.TaskRecord) error {
	pipe := s.redis.TxPipeline()
	pipe.ZRem(ctx, historyKey(rec.UserID, rec.Provider), rec.ID)
	pipe.Del(ctx, taskKey(rec.ID))
	_, err := pipe.Exec(ctx)
	return err
}
