package errors_test

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andesco/bundler/pkg/errors"
)

func TestIs_ParentKinds(t *testing.T) {
	err := errors.RedirectLimitExceeded.Message("11 hops")

	assert.True(t, errors.Is(err, errors.RedirectLimitExceeded))
	assert.True(t, errors.Is(err, errors.Fetch))
	assert.False(t, errors.Is(err, errors.Config))
	assert.False(t, errors.Is(errors.Fetch, errors.RedirectLimitExceeded))
}

func TestIs_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", errors.Config.With(io.EOF))

	assert.True(t, errors.Is(err, errors.Config))
	assert.True(t, errors.Is(err, io.EOF))

	var e *errors.Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "config", e.Kind())
}

func TestBuildersCopy(t *testing.T) {
	_ = errors.Fetch.Message("changed").With(io.EOF)

	assert.Equal(t, "fetch error", errors.Fetch.Error())
	assert.Nil(t, errors.Fetch.Unwrap())
}

func TestError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.Fetch, "fetch error"},
		{errors.Fetch.Message("no host"), "fetch error: no host"},
		{errors.Fetch.With(io.EOF), "fetch error: EOF"},
		{errors.Config.Message("bad file").With(io.EOF), "configuration error: bad file: EOF"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, errors.Status(errors.Fetch))
	assert.Equal(t, http.StatusInternalServerError, errors.Status(io.EOF))
	assert.Equal(t, http.StatusInternalServerError, errors.RedirectLimitExceeded.HTTPStatus())
}

func TestStack(t *testing.T) {
	err := fmt.Errorf("bundle: %w", errors.Fetch.With(io.EOF))

	assert.Equal(t,
		"fmt.wrapError: bundle: fetch error: EOF\n"+
			"fetch: fetch error: EOF\n"+
			"errors.errorString: EOF",
		errors.Stack(err))
	assert.Empty(t, errors.Stack(nil))
}
