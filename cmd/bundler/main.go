package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"

	"github.com/andesco/bundler/handlers"
	"github.com/andesco/bundler/pkg/bundler"
	"github.com/andesco/bundler/pkg/config"
	"github.com/andesco/bundler/pkg/logging"
	"github.com/andesco/bundler/pkg/metrics"
	"github.com/andesco/bundler/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	parser := argparse.NewParser("bundler", "Serves self-contained HTML bundles of web pages")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  config.DefaultFile,
		Help:     "Path to the JSON configuration file",
	})
	verbose := parser.Flag("v", "verbose", &argparse.Options{
		Required: false,
		Help:     "Log at debug level",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, closer, err := logging.New(cfg.Logging, os.Stdout, *verbose)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("bundler stopped")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(cfg.Tracing, "bundler", os.Stdout, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.WithError(err).Warn("failed to flush traces")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b := bundler.New(bundler.Options{
		Timeout:            cfg.FetchTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Metrics:            metrics.New(reg),
	})

	apps := []*fiber.App{}
	errc := make(chan error, 2)

	app := handlers.NewApp(cfg, b, log)
	apps = append(apps, app)
	go func() {
		log.WithFields(logrus.Fields{
			"address":  cfg.Address(),
			"remaps":   cfg.Remaps.Len(),
			"proxy":    cfg.UseProxy,
			"redirect": cfg.RedirectLimit,
		}).Info("bundler listening")
		errc <- app.Listen(cfg.Address())
	}()

	if cfg.MetricsAddress != "" {
		metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
		metricsApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(reg)))
		apps = append(apps, metricsApp)
		go func() {
			log.WithField("address", cfg.MetricsAddress).Info("metrics listening")
			errc <- metricsApp.Listen(cfg.MetricsAddress)
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errc:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, a := range apps {
		if err := a.ShutdownWithContext(sctx); err != nil {
			serveErr = errors.Join(serveErr, err)
		}
	}
	return serveErr
}
