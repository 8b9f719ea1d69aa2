package handler

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/gofiber/swagger"

	"github.com/genstudio/api/internal/middleware"
	"github.com/genstudio/api/internal/service"
	ws "github.com/genstudio/api/internal/websocket"
	"github.com/genstudio/api/pkg/response"
)

// Router wires handlers onto an app.
type Router struct {
	Generation *GenerationHandler
	Upload     *UploadHandler
	Auth       *AuthHandler
	Tasks      *service.TaskService
	Hub        *ws.Hub

	// APIAuth guards /api and /ws.
	APIAuth     fiber.Handler
	RateLimiter *middleware.RateLimiter
	SubmitLimit int
	UploadLimit int

	// Health reports the configured backends.
	Health  fiber.Map
	Swagger bool
}

// Register mounts every route on app.
func (r *Router) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "services": r.Health})
	})
	if r.Swagger {
		app.Get("/swagger/*", fiberSwagger.HandlerDefault)
	}
	if r.Auth != nil {
		app.Get("/auth/verify", r.Auth.Verify)
	}

	api := app.Group("/api", r.APIAuth)

	api.Get("/credits", r.Generation.Credits)
	api.Post("/upload", r.RateLimiter.UploadLimit(r.UploadLimit), r.Upload.Image)

	gen := api.Group("/:provider")
	gen.Post("/submit", r.RateLimiter.SubmitLimit(r.SubmitLimit), r.Generation.Submit)
	gen.Get("/status/:taskId", r.Generation.Status)
	gen.Get("/history", r.Generation.History)
	gen.Delete("/history/:taskId", r.Generation.DeleteHistory)
	gen.Post("/upgrade/:taskId", r.Generation.Upgrade)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tasks/:taskId", r.APIAuth, r.ownsTask, websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("taskId"))
	}))
}

// ownsTask only lets the owner subscribe to a task.
func (r *Router) ownsTask(c *fiber.Ctx) error {
	rec, err := r.Tasks.Record(c.UserContext(), c.Params("taskId"))
	if err != nil {
		return ErrorHandler(c, err)
	}
	if rec.UserID != middleware.GetUserID(c) {
		return response.NotFound(c, "Task not found")
	}
	return c.Next()
}
