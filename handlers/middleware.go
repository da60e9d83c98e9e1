package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"

	logLocal = "log"
)

// RequestLogger tags every request with an id, stores a request scoped
// logger for the handlers and writes one access log line per request.
func RequestLogger(log *logrus.Entry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)

		entry := log.WithField("request_id", id)
		c.Locals(logLocal, entry)

		err := c.Next()

		entry.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
			"remote":   c.IP(),
		}).Info("request completed")

		return err
	}
}

// RequestLog returns the logger stored by RequestLogger, or the standard
// logger when the middleware is not installed.
func RequestLog(c *fiber.Ctx) *logrus.Entry {
	if entry, ok := c.Locals(logLocal).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
