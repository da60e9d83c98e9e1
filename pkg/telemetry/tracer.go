package telemetry

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/andesco/bundler"

// InitTracer installs a tracer provider exporting spans to w. When disabled
// the global no-op provider stays in place and shutdown does nothing.
func InitTracer(enabled bool, serviceName string, w io.Writer, log *logrus.Entry) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.WithField("service", serviceName).Info("OpenTelemetry initialized")

	return tp.Shutdown, nil
}

// Tracer returns the tracer used for bundle sessions.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
