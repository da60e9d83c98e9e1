package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()
	logger, hook := test.NewNullLogger()

	shutdown, err := InitTracer(false, "bundler", &bytes.Buffer{}, logrus.NewEntry(logger))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.Empty(t, hook.AllEntries())
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	logger, hook := test.NewNullLogger()
	var out bytes.Buffer

	shutdown, err := InitTracer(true, "bundler", &out, logrus.NewEntry(logger))
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "bundle")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, out.String(), `"Name": "bundle"`)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "bundler", hook.LastEntry().Data["service"])
}
