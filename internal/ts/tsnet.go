package ts

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/tsnet"

	"github.com/docxology/cellsql/internal/logging"
)

// Options holds tsnet server init configuration.
type Options struct {
	StateDir   string
	Hostname   string
	ControlURL string
	AuthKey    string
}

// Enabled reports whether a tailnet listener was requested.
func (o Options) Enabled() bool { return o.Hostname != "" }

// StartServer initializes and starts a tsnet.Server. Node state lives under
// StateDir/tsnet.
func StartServer(ctx context.Context, opts Options) (*tsnet.Server, error) {
	s := &tsnet.Server{
		Dir:        filepath.Join(opts.StateDir, "tsnet"),
		Hostname:   opts.Hostname,
		AuthKey:    opts.AuthKey,
		ControlURL: opts.ControlURL,
		Logf: func(format string, args ...any) {
			logging.Log.WithField("component", "tsnet").Debugf(format, args...)
		},
	}
	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("tsnet start: %w", err)
	}
	return s, nil
}

// Listen opens a TCP listener on the tailnet address for addr (":port").
func Listen(s *tsnet.Server, addr string) (net.Listener, error) {
	return s.Listen("tcp", addr)
}

// InfoResult is the node's tailnet identity.
type InfoResult struct {
	IP   string
	FQDN string
}

// Info waits up to 30s for the node to get an address and returns it.
func Info(ctx context.Context, s *tsnet.Server) (*InfoResult, error) {
	lc, err := s.LocalClient()
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(30 * time.Second)
	var ipStr, fqdn string
	for {
		st, err := lc.Status(ctx)
		if err == nil && st != nil {
			if len(st.TailscaleIPs) > 0 {
				ipStr = st.TailscaleIPs[0].String()
			}
			if st.Self != nil {
				fqdn = strings.TrimSuffix(st.Self.DNSName, ".")
			}
			if ipStr != "" || fqdn != "" {
				break
			}
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return &InfoResult{IP: ipStr, FQDN: fqdn}, nil
}
