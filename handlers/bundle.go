package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/andesco/bundler/pkg/bundler"
	"github.com/andesco/bundler/pkg/config"
)

const htmlContentType = "text/html; charset=utf-8"

// BundleSite is a Fiber handler answering ?url=<target> with a bundle of
// target and ?ping=1 with "OK".
func BundleSite(cfg *config.Config, b *bundler.Bundler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := RequestLog(c)

		if c.Query("ping") != "" {
			c.Set(fiber.HeaderContentType, htmlContentType)
			return c.Status(fiber.StatusOK).SendString("OK")
		}

		target := extractTarget(c)
		log = log.WithField("url", target)
		log.Info("got bundle request")

		// Convert Fiber headers to http.Header
		inbound := make(http.Header)
		c.Request().Header.VisitAll(func(key, value []byte) {
			inbound.Add(string(key), string(value))
		})

		session := b.NewSession(target, log)
		bundler.Compose(session, cfg, inbound)

		body, err := session.Bundle(c.UserContext())
		if err != nil {
			session.Log().WithError(err).Error("failed to create bundle")
			return renderErrorPage(c, cfg.HTMLDir, target, err, session.Log())
		}

		c.Set(fiber.HeaderContentType, htmlContentType)
		return c.Status(fiber.StatusOK).SendString(body)
	}
}

// extractTarget returns the url query parameter. Without one, a path that
// is itself an absolute URL is used,
// eg: http://localhost:9008/https://realsite.com/page -> https://realsite.com/page
func extractTarget(c *fiber.Ctx) string {
	if target := c.Query("url"); target != "" {
		return target
	}

	path := strings.TrimPrefix(c.Path(), "/")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	// path normalization collapses the double slash after the scheme
	for _, scheme := range []string{"https:/", "http:/"} {
		if strings.HasPrefix(path, scheme) && !strings.HasPrefix(path, scheme+"/") {
			path = scheme + "/" + strings.TrimPrefix(path, scheme)
		}
	}
	u, err := url.Parse(path)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return path
}
