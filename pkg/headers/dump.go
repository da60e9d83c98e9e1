package headers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/andesco/bundler/pkg/pipeline"
)

// DumpOptions logs the final outbound options at debug level and passes them
// on unchanged.
func DumpOptions(log *logrus.Entry) pipeline.Handler {
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		if !log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			return opts, nil
		}
		fields := logrus.Fields{
			"url":              opts.URL,
			"method":           opts.Method,
			"follow_redirects": opts.FollowRedirects,
			"max_redirects":    opts.MaxRedirects,
		}
		if opts.Proxy != "" {
			fields["proxy"] = opts.Proxy
		}
		for name, values := range opts.Header {
			fields["header."+name] = values
		}
		log.WithFields(fields).Debug("outbound request options")
		return opts, nil
	}
}
