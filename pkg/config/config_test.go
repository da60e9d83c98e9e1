package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
)

func writeFiles(t *testing.T, config string, remaps string) string {
	t.Helper()
	dir := t.TempDir()
	remapsPath := filepath.Join(dir, "remaps.json")
	require.NoError(t, os.WriteFile(remapsPath, []byte(remaps), 0o600))

	configPath := filepath.Join(dir, "psconfig.json")
	config = `{"remapsFile": "` + remapsPath + `"` + config + `}`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	return configPath
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeFiles(t, "", `{}`))
	require.NoError(t, err)

	assert.False(t, cfg.UseProxy)
	assert.Empty(t, cfg.ProxyAddress)
	assert.True(t, cfg.FollowFirstRedirect)
	assert.False(t, cfg.FollowAllRedirects)
	assert.Equal(t, 9008, cfg.ListenPort)
	assert.Equal(t, "127.0.0.1", cfg.ListenAddress)
	assert.Equal(t, 10, cfg.RedirectLimit)
	assert.Empty(t, cfg.CloneHeaders)
	assert.Empty(t, cfg.SpoofHeaders)
	assert.Equal(t, ".", cfg.HTMLDir)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "infoFile.log", cfg.Logging.InfoFilename)
	assert.Equal(t, "127.0.0.1:9008", cfg.Address())
	assert.Zero(t, cfg.Remaps.Len())
}

func TestLoad_File(t *testing.T) {
	path := writeFiles(t, `,
		"useProxy": true,
		"proxyAddress": "http://127.0.0.1:3128",
		"followFirstRedirect": false,
		"followAllRedirects": true,
		"listenPort": 9100,
		"listenAddress": "0.0.0.0",
		"redirectLimit": 3,
		"cloneHeaders": ["User-Agent", "Accept-Language"],
		"htmlDir": "/srv/html",
		"spoofHeaders": {"Host": "override.com", "X-Bundler": "1"},
		"fetchTimeout": "5s",
		"logging": {"allowInfoFile": false, "level": "debug"}`,
		`{"hello.com": "helloworld.org"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.UseProxy)
	assert.Equal(t, "http://127.0.0.1:3128", cfg.ProxyAddress)
	assert.Equal(t, []string{"User-Agent", "Accept-Language"}, cfg.CloneHeaders)
	assert.Equal(t, map[string]string{"Host": "override.com", "X-Bundler": "1"}, cfg.SpoofHeaders)
	assert.Equal(t, "/srv/html", cfg.HTMLDir)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "0.0.0.0:9100", cfg.Address())
	assert.False(t, cfg.Logging.AllowInfoFile)
	assert.True(t, cfg.Logging.AllowErrFile, "unset nested keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)

	policy := cfg.RedirectPolicy()
	assert.False(t, policy.FollowFirst)
	assert.True(t, policy.FollowAll)
	assert.Equal(t, 3, policy.Limit)

	to, ok := cfg.Remaps.Lookup("hello.com")
	require.True(t, ok)
	assert.Equal(t, "helloworld.org", to)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUNDLER_LISTENPORT", "9010")
	t.Setenv("BUNDLER_FOLLOWALLREDIRECTS", "true")
	t.Setenv("BUNDLER_UNKNOWN", "ignored")

	cfg, err := Load(writeFiles(t, `, "listenPort": 9100`, `{}`))
	require.NoError(t, err)
	assert.Equal(t, 9010, cfg.ListenPort)
	assert.True(t, cfg.FollowAllRedirects)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		remaps string
	}{
		{"zero redirect limit", `, "redirectLimit": 0`, `{}`},
		{"negative redirect limit", `, "redirectLimit": -1`, `{}`},
		{"port out of range", `, "listenPort": 70000`, `{}`},
		{"proxy without address", `, "useProxy": true`, `{}`},
		{"malformed remaps", "", `{"hello.com": `},
		{"malformed config", `, "listenPort": `, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFiles(t, tt.config, tt.remaps))
			require.Error(t, err)
			assert.ErrorIs(t, err, bundlererrors.Config)
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, bundlererrors.Config)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "psconfig.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"remapsFile": "`+filepath.Join(dir, "none.json")+`"}`), 0o600))
	_, err = Load(configPath)
	assert.ErrorIs(t, err, bundlererrors.Config)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
