package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CELLSQL_"

type Studio struct {
	Path            string `json:"path"`
	BasicAuthUser   string `json:"basic_auth_user,omitempty"`
	BasicAuthPass   string `json:"basic_auth_pass,omitempty"`
	EnforceID       string `json:"enforce_id,omitempty"`
	DisableHomepage bool   `json:"disable_homepage,omitempty"`
	EditorURL       string `json:"editor_url,omitempty"`
}

// Tailscale enables the optional tailnet listener when Hostname is set.
type Tailscale struct {
	Hostname   string `json:"hostname,omitempty"`
	AuthKey    string `json:"auth_key,omitempty"`
	ControlURL string `json:"control_url,omitempty"`
}

type Config struct {
	Listen            string    `json:"listen"`
	StateDir          string    `json:"state_dir"`
	LogLevel          string    `json:"log_level"`
	LogFormat         string    `json:"log_format"`
	Studio            Studio    `json:"studio"`
	Tailscale         Tailscale `json:"tailscale"`
	ShutdownTimeoutMS int       `json:"shutdown_timeout_ms"`
	// APIToken guards mutating /api calls; empty allows loopback only.
	APIToken          string    `json:"api_token,omitempty"`
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}

func baseDir() string { return filepath.Join(homeDir(), ".cellsql") }

// StateDir is the default state directory.
func StateDir() string { return filepath.Join(baseDir(), "state") }

// ConfigPath is the default config file location.
func ConfigPath() string { return filepath.Join(baseDir(), "config.json") }

// Default returns a config that serves on loopback with studio enabled.
func Default() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		StateDir:          StateDir(),
		LogLevel:          "info",
		LogFormat:         "text",
		Studio:            Studio{Path: "/studio"},
		ShutdownTimeoutMS: 10000,
	}
}

// Load reads path (ConfigPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	c := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c to path (ConfigPath when empty).
func Save(c *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// ApplyEnv overrides fields from CELLSQL_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"LISTEN":            &c.Listen,
		"STATE_DIR":         &c.StateDir,
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_FORMAT":        &c.LogFormat,
		"STUDIO_PATH":       &c.Studio.Path,
		"STUDIO_USER":       &c.Studio.BasicAuthUser,
		"STUDIO_PASS":       &c.Studio.BasicAuthPass,
		"STUDIO_ENFORCE_ID": &c.Studio.EnforceID,
		"STUDIO_EDITOR_URL": &c.Studio.EditorURL,
		"TS_HOSTNAME":       &c.Tailscale.Hostname,
		"TS_AUTHKEY":        &c.Tailscale.AuthKey,
		"TS_CONTROL_URL":    &c.Tailscale.ControlURL,
		"API_TOKEN":         &c.APIToken,
	}
	for k, p := range str {
		if v, ok := lookup(EnvPrefix + k); ok {
			*p = v
		}
	}
	if v, ok := lookup(EnvPrefix + "STUDIO_DISABLE_HOMEPAGE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTUDIO_DISABLE_HOMEPAGE: %w", EnvPrefix, err)
		}
		c.Studio.DisableHomepage = b
	}
	if v, ok := lookup(EnvPrefix + "SHUTDOWN_TIMEOUT_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT_MS: %w", EnvPrefix, err)
		}
		c.ShutdownTimeoutMS = n
	}
	return nil
}

func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen must be host:port: %w", err)
	}
	if c.StateDir == "" {
		return errors.New("state_dir required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if !strings.HasPrefix(c.Studio.Path, "/") || c.Studio.Path == "/" {
		return fmt.Errorf("studio.path must be an absolute sub-path, got %q", c.Studio.Path)
	}
	if (c.Studio.BasicAuthUser == "") != (c.Studio.BasicAuthPass == "") {
		return errors.New("studio basic auth needs both user and pass")
	}
	if c.Tailscale.Hostname != "" && c.Tailscale.AuthKey == "" {
		return errors.New("tailscale.auth_key required when tailscale.hostname is set")
	}
	if c.ShutdownTimeoutMS <= 0 || c.ShutdownTimeoutMS > 300000 {
		return fmt.Errorf("shutdown_timeout_ms out of range: %d", c.ShutdownTimeoutMS)
	}
	return nil
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
