package httpapi

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/i474232898/pm25-data-api/internal/metrics"
	"github.com/i474232898/pm25-data-api/internal/pm25"
)

// Options tunes the app built by NewApp.
type Options struct {
	// WriteRateLimit caps POST/PUT/DELETE requests per second (0 = unlimited).
	WriteRateLimit float64
	WriteRateBurst int
	// AccessLog enables the Fiber access logger.
	AccessLog bool
}

// NewApp builds the Fiber app with middleware and all routes registered.
func NewApp(service *pm25.Service, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "pm25-data-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(instrument)
	app.Use(writeLimit(rate.Limit(opts.WriteRateLimit), opts.WriteRateBurst))

	RegisterRoutes(app, service)
	return app
}

// ErrorHandler writes every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Centralized error response
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// instrument records request counts and latency per route pattern.
func instrument(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}
	}
	metrics.RecordRequest(c.Method(), c.Route().Path, status, time.Since(start))
	return err
}

// writeLimit rejects mutations above the given rate with 429.
func writeLimit(limit rate.Limit, burst int) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	lim := rate.NewLimiter(limit, max(burst, 1))
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete:
			if !lim.Allow() {
				c.Set(fiber.HeaderRetryAfter, "1")
				return fiber.NewError(fiber.StatusTooManyRequests, "too many write requests")
			}
		}
		return c.Next()
	}
}
