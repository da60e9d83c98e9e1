package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/andesco/bundler/pkg/bundler"
	"github.com/andesco/bundler/pkg/config"
)

// NewApp returns the Fiber app serving bundles on every path.
func NewApp(cfg *config.Config, b *bundler.Bundler, log *logrus.Entry) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "bundler",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(RequestLogger(log))
	app.All("/*", BundleSite(cfg, b))
	return app
}

// NewEchoApp returns the Fiber app answering every request with Echo.
func NewEchoApp(log *logrus.Entry) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "logdest",
		DisableStartupMessage: true,
	})
	app.Use(RequestLogger(log))
	app.All("/*", Echo)
	return app
}
