package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/model"
)

// ErrSignInRequired blocks a submission without a session.
var ErrSignInRequired = errors.New("please sign in to continue")

// InsufficientCreditsError blocks a submission the cached balance cannot cover.
type InsufficientCreditsError struct {
	Required int
	Balance  int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: %d required, %d available", e.Required, e.Balance)
}

func (e *InsufficientCreditsError) ErrorCode() string {
	return model.ErrorCodeInsufficientCredits
}

// Session is the signed-in user as known to the client.
type Session struct {
	UserID string
	Email  string
	VIP    bool
}

// CreditsSource loads the authoritative balance.
type CreditsSource interface {
	Credits(ctx context.Context) (*model.CreditsResponse, error)
}

// CreditGuard is the explicit read model behind pre-flight checks. It holds
// the session and a cached balance; the server stays authoritative.
type CreditGuard struct {
	source CreditsSource

	mu      sync.RWMutex
	session *Session
	balance int
	pricing credit.Pricing
	loaded  bool
}

// NewCreditGuard starts with the default pricing until the first Refresh.
func NewCreditGuard(source CreditsSource, session *Session) *CreditGuard {
	return &CreditGuard{source: source, session: session, pricing: credit.DefaultPricing()}
}

// SetSession replaces the session. nil signs out and clears the cache.
func (g *CreditGuard) SetSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
	if s == nil {
		g.balance = 0
		g.loaded = false
	}
}

// Session returns a copy of the current session, or nil.
func (g *CreditGuard) Session() *Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil
	}
	s := *g.session
	return &s
}

// Balance returns the cached balance.
func (g *CreditGuard) Balance() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance
}

// SetBalance applies a balance reported by the server, e.g. remaining_credits.
func (g *CreditGuard) SetBalance(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = n
	g.loaded = true
}

// Cost prices a task with the cached pricing table. Image types are charged per image.
func (g *CreditGuard) Cost(t model.TaskType, numImages int) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.costLocked(t, numImages)
}

func (g *CreditGuard) costLocked(t model.TaskType, numImages int) int {
	cost, err := g.pricing.Cost(t, numImages)
	if err != nil {
		// unpriced types are left to the server
		return 0
	}
	return cost
}

// Check is the synchronous pre-flight gate. It never calls the network.
func (g *CreditGuard) Check(t model.TaskType, numImages int) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.session == nil {
		return ErrSignInRequired
	}
	cost := g.costLocked(t, numImages)
	if g.balance < cost {
		return &InsufficientCreditsError{Required: cost, Balance: g.balance}
	}
	return nil
}

// Refresh reloads balance and pricing from the server.
func (g *CreditGuard) Refresh(ctx context.Context) error {
	if g.Session() == nil || g.source == nil {
		return nil
	}
	resp, err := g.source.Credits(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh credits: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = resp.Balance
	if len(resp.Pricing) > 0 {
		g.pricing = credit.Pricing(resp.Pricing).Copy()
	}
	g.loaded = true
	return nil
}

// Loaded reports whether a balance was ever observed.
func (g *CreditGuard) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

