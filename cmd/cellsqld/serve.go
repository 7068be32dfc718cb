package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tailscale.com/tsnet"

	"github.com/docxology/cellsql/internal/api"
	"github.com/docxology/cellsql/internal/audit"
	"github.com/docxology/cellsql/internal/cell"
	"github.com/docxology/cellsql/internal/gateway"
	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/studio"
	"github.com/docxology/cellsql/internal/ts"
	"github.com/docxology/cellsql/pkg/config"
)

type serveFlags struct {
	listen         string
	stateDir       string
	logLevel       string
	exitWithParent bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cell daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if f.listen != "" {
				cfg.Listen = f.listen
			}
			if f.stateDir != "" {
				cfg.StateDir = f.stateDir
			}
			if f.logLevel != "" {
				cfg.LogLevel = f.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
				return err
			}
			if f.exitWithParent {
				if err := setParentDeathSignal(syscall.SIGTERM); err != nil {
					logging.Log.WithError(err).Warn("exit-with-parent unavailable")
				}
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&f.listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&f.stateDir, "state-dir", "", "state directory (overrides config)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")
	cmd.Flags().BoolVar(&f.exitWithParent, "exit-with-parent", false, "terminate when the launching process exits (Linux)")
	return cmd
}

func newServer(h http.Handler) *http.Server {
	// No write timeout: statements and studio sockets may run long.
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logging.Log

	catalog, err := localdb.OpenCatalog(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalog.Close()

	reg := cell.NewRegistry(cell.Options{StateDir: cfg.StateDir, Catalog: catalog, Base: cell.InfoHandler})
	defer func() {
		if err := reg.CloseAll(); err != nil {
			log.WithError(err).Error("close cells")
		}
	}()

	gw, err := gateway.New(gateway.ResolverFunc(func(ctx context.Context, name string) (gateway.Target, error) {
		c, err := reg.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		return c, nil
	}), gateway.Options{
		Path:            cfg.Studio.Path,
		EditorURL:       cfg.Studio.EditorURL,
		BasicAuth:       httpx.BasicAuth{User: cfg.Studio.BasicAuthUser, Pass: cfg.Studio.BasicAuthPass},
		EnforceID:       cfg.Studio.EnforceID,
		DisableHomepage: cfg.Studio.DisableHomepage,
		OnCommand: func(_ context.Context, cmd studio.Command, err error) {
			detail := "ok"
			if err != nil {
				detail = "error"
			}
			audit.Append(catalog, "studio", "studio."+cmd.Type, "cell", cmd.ID, detail)
		},
	})
	if err != nil {
		return err
	}
	handler := api.Handler(api.Deps{Registry: reg, Gateway: gw, StudioPath: cfg.Studio.Path, Token: cfg.APIToken})

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	servers := []*http.Server{newServer(handler)}
	listeners := []net.Listener{ln}

	var tsServer *tsnet.Server
	tsOpts := ts.Options{StateDir: cfg.StateDir, Hostname: cfg.Tailscale.Hostname, AuthKey: cfg.Tailscale.AuthKey, ControlURL: cfg.Tailscale.ControlURL}
	if tsOpts.Enabled() {
		tsServer, err = ts.StartServer(ctx, tsOpts)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer tsServer.Close()
		tln, err := ts.Listen(tsServer, ":80")
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("tsnet listen: %w", err)
		}
		servers = append(servers, newServer(handler))
		listeners = append(listeners, tln)
		go func() {
			if info, err := ts.Info(ctx, tsServer); err == nil {
				log.WithField("ip", info.IP).WithField("fqdn", info.FQDN).Info("tailnet listener ready")
			}
		}()
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		go func(srv *http.Server, ln net.Listener) { errCh <- srv.Serve(ln) }(srv, listeners[i])
	}
	log.WithField("listen", ln.Addr().String()).WithField("studio", cfg.Studio.Path).Info("cellsqld serving")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdown(servers, cfg.ShutdownTimeout())
			return fmt.Errorf("server error: %w", err)
		}
	}
	log.Info("shutting down")
	shutdown(servers, cfg.ShutdownTimeout())
	return nil
}

func shutdown(servers []*http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logging.Log.WithError(err).Warn("server shutdown")
		}
	}
}
