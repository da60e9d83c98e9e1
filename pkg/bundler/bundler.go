// Package bundler builds self-contained HTML bundles of web pages.
//
// A Bundler holds what sessions share: the outbound transport, the fetch
// timeout and the metrics. A Session bundles one URL: it fetches the document
// through the OriginalRequest handlers, embeds the resources the
// OriginalReceived filters ask for (each fetched through the ResourceRequest
// handlers and ResourceReceived filters) and returns the rewritten document.
package bundler

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andesco/bundler/pkg/hostscope"
	"github.com/andesco/bundler/pkg/metrics"
)

const (
	// maxBodySize bounds the bytes read from a single fetch.
	maxBodySize = 32 << 20
	// maxDepth bounds nested resource fetches, e.g. images referenced by
	// stylesheets referenced by the document.
	maxDepth = 3
)

type Options struct {
	// Timeout bounds each outbound fetch. Zero means no timeout.
	Timeout            time.Duration
	InsecureSkipVerify bool
	Metrics            *metrics.Metrics
	// Transport replaces the default outbound transport when set.
	Transport http.RoundTripper
}

type Bundler struct {
	transport http.RoundTripper
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// New creates a Bundler. Fetches are routed through the proxy set on their
// RequestOptions, if any.
func New(o Options) *Bundler {
	transport := o.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.Proxy = proxyFromContext
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
		transport = base
	}

	return &Bundler{
		transport: otelhttp.NewTransport(transport),
		timeout:   o.Timeout,
		metrics:   o.Metrics,
	}
}

// NewSession starts a session bundling target. No handlers are registered.
func (b *Bundler) NewSession(target string, log *logrus.Entry) *Session {
	id := uuid.NewString()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		ID:      id,
		URL:     target,
		Scope:   hostscope.SameHostPredicate(target),
		bundler: b,
		log:     log.WithFields(logrus.Fields{"session": id, "url": target}),
	}
}

type proxyKey struct{}

func withProxy(ctx context.Context, proxy *url.URL) context.Context {
	return context.WithValue(ctx, proxyKey{}, proxy)
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	if p, ok := req.Context().Value(proxyKey{}).(*url.URL); ok {
		return p, nil
	}
	return nil, nil
}
