package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/genstudio/api/internal/model"
)

const (
	defaultMockChecks   = 3
	defaultMockUpgrades = 2
)

// Mock is an in-memory provider used when no upstream key is configured.
// A task completes on its ReadyAfter-th status check.
type Mock struct {
	name  string
	types map[model.TaskType]bool

	ReadyAfter   int
	UpgradeAfter int
	// FailPrompts fail the task instead of completing it.
	FailPrompts map[string]string

	mu    sync.Mutex
	tasks map[string]*mockTask
}

type mockTask struct {
	req      model.SubmitRequest
	checks   int
	upgrades int
}

// NewMock returns a mock standing in for the named provider.
func NewMock(name string, types ...model.TaskType) *Mock {
	m := &Mock{
		name:         name,
		types:        make(map[model.TaskType]bool, len(types)),
		ReadyAfter:   defaultMockChecks,
		UpgradeAfter: defaultMockUpgrades,
		tasks:        make(map[string]*mockTask),
	}
	for _, t := range types {
		m.types[t] = true
	}
	return m
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Supports(t model.TaskType) bool { return m.types[t] }

func (m *Mock) Submit(ctx context.Context, req *model.SubmitRequest) (string, error) {
	if !m.Supports(req.Type) {
		return "", ErrUnsupportedType
	}
	id := "mock_" + uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	copied.ImageURLs = append([]string(nil), req.ImageURLs...)
	m.tasks[id] = &mockTask{req: copied}
	return id, nil
}

func (m *Mock) Status(ctx context.Context, providerTaskID string) (*model.StatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[providerTaskID]
	if !ok {
		return nil, &HTTPError{Provider: m.name, StatusCode: 404, Message: "task not found"}
	}
	t.checks++

	resp := &model.StatusResponse{Success: true, TaskID: providerTaskID, Type: t.req.Type}
	if t.checks < m.ReadyAfter {
		resp.Status = model.RemoteStatusProcessing
		return resp, nil
	}

	if msg, fail := m.FailPrompts[t.req.Prompt]; fail {
		resp.Status = model.RemoteStatusFailed
		resp.ErrorMessage = msg
		return resp, nil
	}

	resp.Status = model.RemoteStatusCompleted
	if t.req.Type.IsVideo() {
		resp.VideoURL = fmt.Sprintf("https://mock.genstudio.local/%s/%s.mp4", m.name, providerTaskID)
		return resp, nil
	}

	n := t.req.NumImages
	if n < 1 {
		n = 1
	}
	images := make([]model.ResultImage, 0, n)
	for i := 0; i < n; i++ {
		seed := int64(i + 1)
		images = append(images, model.ResultImage{
			URL:    fmt.Sprintf("https://mock.genstudio.local/%s/%s-%d.png", m.name, providerTaskID, i),
			Seed:   &seed,
			Width:  1024,
			Height: 1024,
		})
	}
	resp.Result = &model.StatusResult{Images: images}
	return resp, nil
}

// Upgrade1080p reports PROCESSING until it was asked UpgradeAfter times.
func (m *Mock) Upgrade1080p(ctx context.Context, providerTaskID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[providerTaskID]
	if !ok {
		return "", &HTTPError{Provider: m.name, StatusCode: 404, Message: "task not found"}
	}
	if !t.req.Type.IsVideo() {
		return "", ErrUpgradeNotOffered
	}
	t.upgrades++
	if t.upgrades < m.UpgradeAfter {
		return "", notReady("")
	}
	return fmt.Sprintf("https://mock.genstudio.local/%s/%s-1080p.mp4", m.name, providerTaskID), nil
}
