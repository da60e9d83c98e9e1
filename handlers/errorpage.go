package handlers

import (
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
)

const errorTemplate = "error.html"

// renderErrorPage answers with htmlDir/error.html, its {{url}}, {{error}}
// and {{stack}} placeholders filled in. When the template cannot be read a
// plain text description is sent instead.
func renderErrorPage(c *fiber.Ctx, htmlDir, target string, cause error, log *logrus.Entry) error {
	c.Status(bundlererrors.Status(cause))

	path := filepath.Join(htmlDir, errorTemplate)
	tmpl, err := os.ReadFile(path)
	if err != nil {
		log.WithError(bundlererrors.TemplateRead.Message(path).With(err)).Error("failed to read error template")
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(plainErrorPage(target, cause))
	}

	page := string(tmpl)
	page = strings.Replace(page, "{{url}}", html.EscapeString(target), 1)
	page = strings.Replace(page, "{{error}}", html.EscapeString(cause.Error()), 1)
	page = strings.Replace(page, "{{stack}}", html.EscapeString(bundlererrors.Stack(cause)), 1)

	c.Set(fiber.HeaderContentType, htmlContentType)
	return c.SendString(page)
}

func plainErrorPage(target string, cause error) string {
	var b strings.Builder
	b.WriteString("An error occurred while trying to create a bundle for you.\n")
	b.WriteString("Requested url: " + target + "\n")
	b.WriteString("The error provided says: " + cause.Error() + "\n")
	return b.String()
}
