package bundler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
	"github.com/andesco/bundler/pkg/pipeline"
	"github.com/andesco/bundler/pkg/redirect"
)

// fetch performs the request described by opts. onHop is called for every
// redirect that is followed.
func (b *Bundler) fetch(ctx context.Context, opts *pipeline.RequestOptions, onHop func(int, string)) (*pipeline.Response, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, bundlererrors.Fetch.Message("invalid url").With(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, bundlererrors.Fetch.Message(fmt.Sprintf("unsupported scheme %q in %s", u.Scheme, opts.URL))
	}
	if u.Host == "" {
		return nil, bundlererrors.Fetch.Message(fmt.Sprintf("no host in %s", opts.URL))
	}

	if opts.Proxy != "" {
		proxy, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, bundlererrors.Fetch.Message("invalid proxy address").With(err)
		}
		ctx = withProxy(ctx, proxy)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, bundlererrors.Fetch.With(err)
	}
	for name, values := range opts.Header {
		if http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		req.Header[name] = append([]string(nil), values...)
	}
	if host := opts.Header.Get("Host"); host != "" {
		req.Host = host
	}

	client := &http.Client{
		Transport:     b.transport,
		CheckRedirect: redirect.CheckRedirect(opts, onHop),
	}
	resp, err := client.Do(req)
	if err != nil {
		var be *bundlererrors.Error
		if bundlererrors.As(err, &be) {
			return nil, be
		}
		return nil, bundlererrors.Fetch.With(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, bundlererrors.Fetch.Message("failed to read response body").With(err)
	}
	if ct := resp.Header.Get("Content-Type"); isText(ct) {
		resp.Header.Set("Content-Type", utf8ContentType(ct))
	}

	return &pipeline.Response{
		Request:    opts,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads at most maxBodySize bytes. Documents and stylesheets are
// decoded to UTF-8 so the rewrite filters see a single encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBodySize)

	contentType := resp.Header.Get("Content-Type")
	if isText(contentType) {
		decoded, err := charset.NewReader(r, contentType)
		if err != nil {
			return nil, err
		}
		r = decoded
	}
	return io.ReadAll(r)
}

// utf8ContentType replaces the charset of contentType by utf-8, matching a
// body decoded by readBody.
func utf8ContentType(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	params["charset"] = "utf-8"
	return mime.FormatMediaType(mediaType, params)
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "text/css")
}
