// Package remap fetches configured sites from an alternate backend host while
// still presenting the requested hostname in the Host header.
package remap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/andesco/bundler/pkg/pipeline"
)

// Table maps a requested hostname to the hostname actually fetched from. It
// is read-only once built and safe to share between sessions.
type Table struct {
	hosts map[string]string
}

// NewTable copies hosts into a new Table.
func NewTable(hosts map[string]string) *Table {
	t := &Table{hosts: make(map[string]string, len(hosts))}
	for from, to := range hosts {
		t.hosts[from] = to
	}
	return t
}

// Load reads a remap file. The file holds a single JSON or YAML mapping of
// hostname to hostname.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remaps file '%s': %w", path, err)
	}

	var hosts map[string]string
	if err := yaml.Unmarshal(raw, &hosts); err != nil {
		return nil, fmt.Errorf("syntax error in remaps file '%s': %w", path, err)
	}

	for from, to := range hosts {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("invalid remap entry %q: %q in '%s'", from, to, path)
		}
	}
	return NewTable(hosts), nil
}

// Lookup returns the backend for hostname. Keys match exactly.
func (t *Table) Lookup(hostname string) (string, bool) {
	if t == nil {
		return "", false
	}
	to, ok := t.hosts[hostname]
	return to, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hosts)
}

// Apply rewrites the outbound URL of remapped hosts to the backend host and
// sets Host to the originally requested hostname. Requests for other hosts
// pass through unchanged. Apply never fails.
func Apply(table *Table, log *logrus.Entry) pipeline.Handler {
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		u, err := url.Parse(opts.URL)
		if err != nil {
			return opts, nil
		}
		hostname := u.Hostname()
		backend, ok := table.Lookup(hostname)
		if !ok {
			return opts, nil
		}

		remapped := &url.URL{
			Scheme:   u.Scheme,
			Host:     backend,
			Path:     u.Path,
			RawPath:  u.RawPath,
			RawQuery: u.RawQuery,
		}
		if remapped.Path == "" {
			remapped.Path = "/"
		}

		opts.URL = remapped.String()
		if opts.Header == nil {
			opts.Header = make(http.Header)
		}
		opts.Header.Set("Host", hostname)
		if log != nil {
			log.WithField("remapped_url", opts.URL).Debug("remapped request")
		}
		return opts, nil
	}
}
