package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RunInitWizard prompts for the main settings on in and writes the result
// to path (ConfigPath when empty).
func RunInitWizard(in io.Reader, out io.Writer, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	fmt.Fprintln(out, "cellsql setup wizard")
	fmt.Fprintln(out, "Config will be stored at:", path)

	def := Default()
	s := bufio.NewScanner(in)
	read := func(prompt, dflt string) string {
		fmt.Fprintf(out, "%s [%s]: ", prompt, dflt)
		if !s.Scan() {
			return dflt
		}
		v := strings.TrimSpace(s.Text())
		if v == "" {
			return dflt
		}
		return v
	}

	c := def
	c.Listen = read("Listen address", def.Listen)
	c.StateDir = read("State directory", def.StateDir)
	c.LogLevel = read("Log level", def.LogLevel)
	c.Studio.Path = read("Studio path", def.Studio.Path)
	c.Studio.BasicAuthUser = read("Studio basic auth user (empty disables)", "")
	if c.Studio.BasicAuthUser != "" {
		c.Studio.BasicAuthPass = read("Studio basic auth password", "")
	}
	c.Tailscale.Hostname = read("Tailnet hostname (empty disables)", "")
	if c.Tailscale.Hostname != "" {
		c.Tailscale.AuthKey = read("Tailscale auth key", "")
		c.Tailscale.ControlURL = read("Control server URL (empty for default)", "")
	}
	c.ShutdownTimeoutMS = atoiDefault(read("Shutdown timeout ms", fmt.Sprint(def.ShutdownTimeoutMS)), def.ShutdownTimeoutMS)

	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.StateDir, 0o700); err != nil {
		return err
	}
	return Save(c, path)
}

func atoiDefault(s string, def int) int {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
