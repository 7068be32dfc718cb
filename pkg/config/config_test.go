package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "/studio", c.Studio.Path)
	require.NoError(t, c.Validate())
}

func TestSaveLoadAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.json")
	c := Default()
	c.Listen = "0.0.0.0:9000"
	c.StateDir = t.TempDir()
	require.NoError(t, Save(c, path))

	t.Setenv("CELLSQL_STUDIO_USER", "admin")
	t.Setenv("CELLSQL_STUDIO_PASS", "pw")
	t.Setenv("CELLSQL_STUDIO_DISABLE_HOMEPAGE", "true")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", got.Listen)
	assert.Equal(t, "admin", got.Studio.BasicAuthUser)
	assert.True(t, got.Studio.DisableHomepage)
	require.NoError(t, got.Validate())

	t.Setenv("CELLSQL_SHUTDOWN_TIMEOUT_MS", "soon")
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"listen":    func(c *Config) { c.Listen = "nope" },
		"state":     func(c *Config) { c.StateDir = "" },
		"format":    func(c *Config) { c.LogFormat = "xml" },
		"studio":    func(c *Config) { c.Studio.Path = "studio" },
		"half auth": func(c *Config) { c.Studio.BasicAuthUser = "u" },
		"tailscale": func(c *Config) { c.Tailscale.Hostname = "cells" },
		"shutdown":  func(c *Config) { c.ShutdownTimeoutMS = 0 },
	}
	for name, mut := range cases {
		c := Default()
		mut(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestInitWizard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	state := filepath.Join(dir, "state")
	in := strings.NewReader(strings.Join([]string{
		"127.0.0.1:9999", state, "debug", "", "", "", "",
	}, "\n") + "\n")
	var out strings.Builder
	require.NoError(t, RunInitWizard(in, &out, path))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", c.Listen)
	assert.Equal(t, state, c.StateDir)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 10000, c.ShutdownTimeoutMS)
	_, err = os.Stat(state)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "cellsql setup wizard")
}
