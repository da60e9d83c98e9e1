package bundler

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
	"github.com/andesco/bundler/pkg/hostscope"
	"github.com/andesco/bundler/pkg/metrics"
	"github.com/andesco/bundler/pkg/pipeline"
	"github.com/andesco/bundler/pkg/telemetry"
)

var errAlreadyBundled = fmt.Errorf("session already bundled")

// Session bundles a single URL. Its handlers, options and redirect count
// belong to it alone; only the Bundler is shared between sessions.
type Session struct {
	pipeline.Registration

	ID    string
	URL   string
	Scope hostscope.Predicate

	bundler   *Bundler
	log       *logrus.Entry
	redirects atomic.Int64
	started   atomic.Bool
}

// Log returns the session's log entry.
func (s *Session) Log() *logrus.Entry {
	return s.log
}

// Redirects returns the redirect hops followed so far by the session's fetches.
func (s *Session) Redirects() int {
	return int(s.redirects.Load())
}

// Bundle fetches the document and its resources and returns the bundled
// document. It produces exactly one outcome; calling it again fails.
func (s *Session) Bundle(ctx context.Context) (string, error) {
	if !s.started.CompareAndSwap(false, true) {
		return "", errAlreadyBundled
	}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "bundle", trace.WithAttributes(
		attribute.String("bundle.session", s.ID),
		attribute.String("bundle.url", s.URL),
	))
	defer span.End()

	body, err := s.bundle(ctx)

	s.bundler.metrics.ObserveBundle(metrics.Outcome(err), time.Since(start))
	span.SetAttributes(attribute.Int("bundle.redirects", s.Redirects()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"size":     units.HumanSize(float64(len(body))),
		"duration": time.Since(start).String(),
	}).Info("bundle built")
	return body, nil
}

func (s *Session) bundle(ctx context.Context) (string, error) {
	if s.URL == "" {
		return "", bundlererrors.Fetch.Message("no url to bundle")
	}

	opts, err := s.RunRequest(ctx, pipeline.OriginalRequest, pipeline.NewRequestOptions(s.URL))
	if err != nil {
		return "", bundlererrors.Fetch.With(err)
	}

	resp, err := s.bundler.fetch(ctx, opts, s.onHop)
	if err != nil {
		return "", err
	}
	resp.Resources = s

	resp, err = s.RunReceived(ctx, pipeline.OriginalReceived, resp)
	if err != nil {
		return "", bundlererrors.Fetch.With(err)
	}
	return string(resp.Body), nil
}

// FetchResource fetches an embedded resource through the resource phases.
// Failures are logged and returned; the caller leaves the reference as it is.
func (s *Session) FetchResource(ctx context.Context, resourceURL string) (*pipeline.Response, error) {
	resp, err := s.fetchResource(ctx, resourceURL)
	s.bundler.metrics.ObserveResource(metrics.Outcome(err))
	if err != nil {
		s.log.WithError(err).WithField("resource", resourceURL).Warn("resource not embedded")
	}
	return resp, err
}

func (s *Session) fetchResource(ctx context.Context, resourceURL string) (*pipeline.Response, error) {
	depth := depthFrom(ctx)
	if depth >= maxDepth {
		return nil, fmt.Errorf("resource nesting deeper than %d", maxDepth)
	}
	ctx = withDepth(ctx, depth+1)

	ctx, span := telemetry.Tracer().Start(ctx, "resource", trace.WithAttributes(attribute.String("resource.url", resourceURL)))
	defer span.End()

	opts, err := s.RunRequest(ctx, pipeline.ResourceRequest, pipeline.NewRequestOptions(resourceURL))
	if err != nil {
		return nil, err
	}

	resp, err := s.bundler.fetch(ctx, opts, s.onHop)
	if err != nil {
		return nil, err
	}
	// an unfollowed redirect is not the resource either
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	resp.Resources = s

	return s.RunReceived(ctx, pipeline.ResourceReceived, resp)
}

func (s *Session) onHop(hop int, to string) {
	s.redirects.Add(1)
	s.bundler.metrics.ObserveRedirect()
	s.log.WithFields(logrus.Fields{"hop": hop, "location": to}).Debug("following redirect")
}

type depthKey struct{}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}
