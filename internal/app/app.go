package app

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"pdf2png/internal/handlers"
	"pdf2png/internal/pipeline"
	u "pdf2png/internal/utils"
)

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Limits.MaxPayloadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, cfg)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// errorHandler renders every failure as a JSON error body. Pipeline errors
// carry a machine-readable kind; invalid input maps to 400, everything else
// is a server error. Raw diagnostic detail never reaches the client.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	kind := ""
	msg := "Internal Server Error"

	var perr *pipeline.Error
	var ferr *fiber.Error
	switch {
	case errors.As(err, &perr):
		kind = string(perr.Kind)
		msg = perr.Message
		if perr.Kind == pipeline.KindInvalidInput {
			code = fiber.StatusBadRequest
		}
	case errors.As(err, &ferr):
		code = ferr.Code
		msg = ferr.Message
	}

	u.Warn("Request failed", "path", c.Path(), "status", code, "kind", kind, "message", msg)

	body := fiber.Map{
		"code":    code,
		"message": msg,
	}
	if kind != "" {
		body["kind"] = kind
	}
	return c.Status(code).JSON(fiber.Map{"error": body})
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, cfg u.Config) {
	// One shared service instance so every conversion route uses the same
	// pipeline wiring.
	svc := handlers.NewConvertService(cfg)

	v1 := app.Group("/v1")
	v1.Post("/pdf-to-images", svc.HandleImages)
	v1.Post("/pdf-to-images-zip", svc.HandleZip)
	v1.Get("/monitor", monitor.New())

	// Unversioned aliases kept for clients of the original service.
	app.Post("/pdf-to-images", svc.HandleImages)
	app.Post("/pdf-to-images-zip", svc.HandleZip)

	app.Get("/health", svc.HandleHealth)
}
