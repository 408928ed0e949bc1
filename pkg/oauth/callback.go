package oauth

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// CallbackPath is where completion pages report back.
const CallbackPath = "/auth/callback"

// Publisher accepts completions.
type Publisher interface {
	Publish(completion Completion) error
}

// CallbackServer receives completion redirects from the browser on a local
// address and hands them to a Publisher.
type CallbackServer struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
}

func NewCallbackServer(addr string, publisher Publisher, logger *slog.Logger) *CallbackServer {
	logger = logger.With("module", "oauth_callback")

	app := fiber.New()
	app.Get(CallbackPath, callbackHandler(publisher, logger))
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	return &CallbackServer{app: app, addr: addr, logger: logger}
}

// App exposes the fiber app, mostly for tests.
func (s *CallbackServer) App() *fiber.App {
	return s.app
}

// URL is the callback address completion pages must redirect to.
func (s *CallbackServer) URL() string {
	return "http://" + s.addr + CallbackPath
}

// Start blocks serving until Shutdown.
func (s *CallbackServer) Start() error {
	s.logger.Info("Listening for OAuth completions", "addr", s.addr)

	return s.app.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func callbackHandler(publisher Publisher, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		state := c.Query("state")
		if state == "" {
			return badRequest(c, "missing state parameter")
		}

		messageType, ok := ParseMessageType(c.Query("type", string(MessageSuccess)))
		if !ok {
			return badRequest(c, "unknown message type "+c.Query("type"))
		}

		completion := Completion{
			CorrelationID: state,
			Type:          messageType,
			Provider:      c.Query("provider"),
			Error:         c.Query("error"),
		}

		if completion.Error != "" {
			completion.Type = MessageError
		}

		if err := publisher.Publish(completion); err != nil {
			logger.Error("Failed to publish completion", "error", err)

			problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
				WithInstance(c.Path()).
				WithType("internal_error").
				WithError(err)

			return c.Status(fiber.StatusInternalServerError).JSON(problem)
		}

		logger.Info("OAuth completion received", "provider", completion.Provider, "type", completion.Type)

		if completion.Succeeded() {
			return c.SendString("Authorization complete. You can close this window.")
		}

		return c.SendString("Authorization failed: " + completion.Error)
	}
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}
