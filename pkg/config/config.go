// Package config loads the bundler configuration once at startup.
//
// The configuration file is JSON (any YAML is accepted as well). Top level
// scalar keys can be overridden from the environment with a BUNDLER_ prefix,
// e.g. BUNDLER_LISTENPORT=9010. The remap table is read from the separate
// file named by remapsFile. The resulting *Config is never modified after
// Load returns.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
	"github.com/andesco/bundler/pkg/logging"
	"github.com/andesco/bundler/pkg/redirect"
	"github.com/andesco/bundler/pkg/remap"
)

const (
	DefaultFile = "./psconfig.json"
	envPrefix   = "BUNDLER_"
)

type Config struct {
	// Route document and resource fetches through an HTTP proxy.
	UseProxy     bool   `koanf:"useProxy"`
	ProxyAddress string `koanf:"proxyAddress"`

	FollowFirstRedirect bool `koanf:"followFirstRedirect"`
	FollowAllRedirects  bool `koanf:"followAllRedirects"`
	RedirectLimit       int  `koanf:"redirectLimit"`

	ListenPort    int    `koanf:"listenPort"`
	ListenAddress string `koanf:"listenAddress"`

	// Headers copied from the inbound request onto the document request.
	CloneHeaders []string `koanf:"cloneHeaders"`
	// Header values written on every outbound request.
	SpoofHeaders map[string]string `koanf:"spoofHeaders"`

	// Blank out anchors pointing away from the bundled document's host.
	StripForeignLinks bool `koanf:"stripForeignLinks"`

	HTMLDir    string `koanf:"htmlDir"`
	RemapsFile string `koanf:"remapsFile"`

	MetricsAddress     string        `koanf:"metricsAddress"`
	Tracing            bool          `koanf:"tracing"`
	FetchTimeout       time.Duration `koanf:"fetchTimeout"`
	InsecureSkipVerify bool          `koanf:"insecureSkipVerify"`

	Logging logging.Config `koanf:"logging"`

	Remaps *remap.Table `koanf:"-"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		FollowFirstRedirect: true,
		RedirectLimit:       10,
		ListenPort:          9008,
		ListenAddress:       "127.0.0.1",
		CloneHeaders:        []string{},
		SpoofHeaders:        map[string]string{},
		HTMLDir:             ".",
		RemapsFile:          "./remaps.json",
		FetchTimeout:        30 * time.Second,
		InsecureSkipVerify:  true,
		Logging:             logging.DefaultConfig(),
	}
}

// envKeys maps lower-cased environment suffixes to configuration keys.
var envKeys = func() map[string]string {
	keys := []string{
		"useProxy", "proxyAddress", "followFirstRedirect", "followAllRedirects",
		"redirectLimit", "listenPort", "listenAddress", "cloneHeaders", "htmlDir",
		"remapsFile", "stripForeignLinks", "metricsAddress", "tracing", "fetchTimeout", "insecureSkipVerify",
	}
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = k
	}
	return m
}()

// Load reads the configuration file at path, applies environment overrides,
// loads the remap table and validates the result. Every failure is a
// configuration error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, bundlererrors.Config.Message(fmt.Sprintf("failed to read config file '%s'", path)).With(err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(s, envPrefix))]
	}), nil); err != nil {
		return nil, bundlererrors.Config.Message("failed to read environment").With(err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, bundlererrors.Config.Message(fmt.Sprintf("invalid config file '%s'", path)).With(err)
	}

	remaps, err := remap.Load(cfg.RemapsFile)
	if err != nil {
		return nil, bundlererrors.Config.With(err)
	}
	cfg.Remaps = remaps

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be corrected at request time.
func (c *Config) Validate() error {
	if err := c.RedirectPolicy().Validate(); err != nil {
		return bundlererrors.Config.With(err)
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return bundlererrors.Config.Message(fmt.Sprintf("listenPort %d out of range", c.ListenPort))
	}
	if c.UseProxy {
		u, err := url.Parse(c.ProxyAddress)
		if err != nil {
			return bundlererrors.Config.Message("invalid proxyAddress").With(err)
		}
		if u.Host == "" {
			return bundlererrors.Config.Message(fmt.Sprintf("proxyAddress %q has no host", c.ProxyAddress))
		}
	}
	if c.FetchTimeout < 0 {
		return bundlererrors.Config.Message("fetchTimeout must not be negative")
	}
	for name := range c.SpoofHeaders {
		if strings.TrimSpace(name) == "" {
			return bundlererrors.Config.Message("spoofHeaders contains an empty header name")
		}
	}
	return nil
}

// Address is the listen address of the bundling endpoint.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.ListenPort))
}

func (c *Config) RedirectPolicy() redirect.Policy {
	return redirect.Policy{
		FollowFirst: c.FollowFirstRedirect,
		FollowAll:   c.FollowAllRedirects,
		Limit:       c.RedirectLimit,
	}
}
