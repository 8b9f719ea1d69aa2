package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/genstudio/api/internal/auth"
	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/handler"
	"github.com/genstudio/api/internal/middleware"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/internal/storage"
	ws "github.com/genstudio/api/internal/websocket"
	"github.com/genstudio/api/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUser      = "test-user-123"
)

// queue records enqueued poll tasks so tests can run them synchronously.
type queue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *queue) EnqueueContext(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

func (q *queue) drain() []*asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	queue  *queue
	worker *worker.TaskWorker
	store  *storage.Memory
	images *provider.Mock
	videos *provider.Mock
}

// setupApp builds the same router as main.go on top of miniredis and mock providers.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	images := provider.NewMock(model.ProviderNanoBanana, model.TaskTypeTextToImage, model.TaskTypeImageToImage)
	videos := provider.NewMock(model.ProviderVeo3, model.TaskTypeTextToVideo, model.TaskTypeImageToVideo)
	videos.UpgradeAfter = 1
	providers := provider.NewRegistry()
	providers.Register(images, time.Millisecond)
	providers.Register(videos, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(nil)
	go hub.Run(ctx)

	q := &queue{}
	store := storage.NewMemory("https://cdn.test")
	ledger := credit.NewLedger(redisClient, 50)
	tasks := service.NewTaskService(redisClient, q, providers, ledger, credit.DefaultPricing(), service.TaskServiceOptions{RequireVIP: true})
	uploads := service.NewUploadService(store, service.UploadOptions{})

	authn := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler, BodyLimit: 20 * 1024 * 1024})
	router := &handler.Router{
		Generation:  handler.NewGenerationHandler(tasks, validator.New()),
		Upload:      handler.NewUploadHandler(uploads),
		Auth:        handler.NewAuthHandler(authn),
		Tasks:       tasks,
		Hub:         hub,
		APIAuth:     authn.Authenticate(),
		RateLimiter: middleware.NewRateLimiter(redisClient, nil),
		// very high limits so tests don't get blocked
		SubmitLimit: 10000,
		UploadLimit: 10000,
		Health:      fiber.Map{"providers": providers.Names(), "storage": store.Name(), "auth": true},
	}
	router.Register(app)

	return &testApp{
		app:    app,
		queue:  q,
		worker: worker.NewTaskWorker(tasks, providers, hub, 10, nil),
		store:  store,
		images: images,
		videos: videos,
	}
}

// runWorkers processes every queued poll task.
func (ta *testApp) runWorkers(t *testing.T) {
	t.Helper()
	for _, task := range ta.queue.drain() {
		if err := ta.worker.ProcessTask(context.Background(), task); err != nil {
			t.Fatalf("poll task failed: %v", err)
		}
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(testJWTSecret, userID, userID+"@example.com", roles, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as testUser.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequestAs(t, app, generateToken(t, testUser), method, path, body)
}

func doRequestAs(t *testing.T, app *fiber.App, token, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// decode parses the response body into out.
func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
