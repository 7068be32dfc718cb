package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"

	configFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cellsqld",
		Short:         "Named embedded SQL cells over HTTP",
		Long:          "cellsqld hosts named SQLite cells, each reachable at /cells/<name>/, with a browser query editor at /studio.",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ~/.cellsql/config.json)")

	root.AddCommand(newServeCmd(), newInitCmd(), newQueryCmd(), newCellsCmd(), newDropCmd(), newAuditCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
