package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Echo logs the URL and headers of every request it receives and answers
// "Acknowledged". It stands in for an upstream when checking what the
// bundler sends out.
func Echo(c *fiber.Ctx) error {
	fields := logrus.Fields{"url": c.OriginalURL(), "method": c.Method()}
	c.Request().Header.VisitAll(func(key, value []byte) {
		fields["header."+string(key)] = string(value)
	})
	RequestLog(c).WithFields(fields).Info("received request")

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString("Acknowledged\n")
}
