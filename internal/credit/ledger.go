// Package credit keeps per-user credit balances in Redis.
package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genstudio/api/internal/model"
)

const (
	balanceKeyPrefix = "credits:"
	refundKeyPrefix  = "credits:refund:"
	refundMarkerTTL  = 30 * 24 * time.Hour
)

// ErrInsufficientCredits matches any *InsufficientError via errors.Is.
var ErrInsufficientCredits = errors.New("insufficient credits")

// InsufficientError reports a rejected deduction.
type InsufficientError struct {
	Required int
	Balance  int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Balance)
}

func (e *InsufficientError) Is(target error) bool { return target == ErrInsufficientCredits }

func (e *InsufficientError) ErrorCode() string { return model.ErrorCodeInsufficientCredits }

// KEYS[1] balance key; ARGV[1] cost, ARGV[2] signup bonus.
// Returns {1, new balance} or {0, current balance}.
var deductScript = redis.NewScript(`
local bal = redis.call('GET', KEYS[1])
if not bal then
	redis.call('SET', KEYS[1], ARGV[2])
	bal = ARGV[2]
end
bal = tonumber(bal)
local cost = tonumber(ARGV[1])
if bal < cost then
	return {0, bal}
end
return {1, redis.call('DECRBY', KEYS[1], cost)}
`)

// KEYS[1] balance key, KEYS[2] refund marker; ARGV[1] amount, ARGV[2] marker ttl seconds.
// Returns {1, new balance} or {0, current balance} when already refunded.
var refundScript = redis.NewScript(`
if redis.call('SET', KEYS[2], ARGV[1], 'NX', 'EX', ARGV[2]) then
	return {1, redis.call('INCRBY', KEYS[1], ARGV[1])}
end
return {0, tonumber(redis.call('GET', KEYS[1]) or '0')}
`)

// Ledger is a Redis backed credit balance store.
type Ledger struct {
	redis       *redis.Client
	signupBonus int
}

func NewLedger(redisClient *redis.Client, signupBonus int) *Ledger {
	return &Ledger{redis: redisClient, signupBonus: signupBonus}
}

// Balance returns the user's balance, seeding new users with the signup bonus.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	key := balanceKeyPrefix + userID
	if err := l.redis.SetNX(ctx, key, l.signupBonus, 0).Err(); err != nil {
		return 0, fmt.Errorf("seed balance: %w", err)
	}
	n, err := l.redis.Get(ctx, key).Int()
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return n, nil
}

// Deduct atomically removes cost credits and returns the remaining balance.
func (l *Ledger) Deduct(ctx context.Context, userID string, cost int) (int, error) {
	if cost < 0 {
		return 0, fmt.Errorf("negative cost %d", cost)
	}
	res, err := deductScript.Run(ctx, l.redis, []string{balanceKeyPrefix + userID}, cost, l.signupBonus).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("deduct credits: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("deduct credits: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return int(res[1]), &InsufficientError{Required: cost, Balance: int(res[1])}
	}
	return int(res[1]), nil
}

// Refund returns amount credits for taskID. Repeated refunds of the same task
// are no-ops; the boolean reports whether this call applied the refund.
func (l *Ledger) Refund(ctx context.Context, userID, taskID string, amount int) (int, bool, error) {
	if amount <= 0 {
		return 0, false, nil
	}
	keys := []string{balanceKeyPrefix + userID, refundKeyPrefix + taskID}
	res, err := refundScript.Run(ctx, l.redis, keys, amount, int(refundMarkerTTL.Seconds())).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("refund credits: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("refund credits: unexpected reply %v", res)
	}
	return int(res[1]), res[0] == 1, nil
}
