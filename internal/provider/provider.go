// Package provider talks to the upstream AI generation APIs.
package provider

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/genstudio/api/internal/model"
)

var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrUnsupportedType   = errors.New("task type not supported by provider")
	ErrUpgradeNotOffered = errors.New("provider does not offer 1080p upgrades")
)

// Provider submits generation tasks and reports their status in the
// status endpoint vocabulary.
type Provider interface {
	Name() string
	Supports(t model.TaskType) bool
	Submit(ctx context.Context, req *model.SubmitRequest) (string, error)
	Status(ctx context.Context, providerTaskID string) (*model.StatusResponse, error)
}

// Upgrader is implemented by providers that can re-render a finished video in 1080p.
// A not-ready artifact is reported as a *model.TaskError with code PROCESSING.
type Upgrader interface {
	Upgrade1080p(ctx context.Context, providerTaskID string) (string, error)
}

type entry struct {
	provider Provider
	interval time.Duration
}

// Registry resolves providers by route name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds p, replacing any provider with the same name. interval is
// the spacing between upstream status checks for tasks of this provider.
func (r *Registry) Register(p Provider, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Name()] = entry{provider: p, interval: interval}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return e.provider, nil
}

// Interval returns the poll interval of a provider, or zero when unknown.
func (r *Registry) Interval(name string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].interval
}

// Names lists the registered providers in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
