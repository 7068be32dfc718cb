package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docxology/cellsql/pkg/client"
	"github.com/docxology/cellsql/pkg/config"
)

type clientFlags struct {
	server string
	token  string
	json   bool
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.server, "server", "", "daemon base URL (default from config listen address)")
	fs.StringVar(&f.token, "token", "", "API token (default from config)")
	fs.BoolVar(&f.json, "json", false, "print JSON instead of tables")
}

// client resolves the daemon address and token from flags or the config file.
func (f *clientFlags) client() (*client.Client, error) {
	server, token := f.server, f.token
	if server == "" || token == "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if server == "" {
			server = "http://" + cfg.Listen
		}
		if token == "" {
			token = cfg.APIToken
		}
	}
	return client.New(strings.TrimRight(server, "/"), client.WithToken(token)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseParam reads a parameter as JSON when it parses, else as a string.
func parseParam(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

func newQueryCmd() *cobra.Command {
	var (
		f      clientFlags
		params []string
	)
	cmd := &cobra.Command{
		Use:   "query <cell> <sql> [<sql>...]",
		Short: "Run statements against a cell",
		Long:  "Runs one or more statements in order against a cell through /cells/<cell>/query/raw and prints each result as a table.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			stmts := make([]client.Statement, 0, len(args)-1)
			for _, sql := range args[1:] {
				stmts = append(stmts, client.Statement{SQL: sql})
			}
			if len(params) > 0 {
				if len(stmts) != 1 {
					return fmt.Errorf("--param needs exactly one statement, got %d", len(stmts))
				}
				for _, p := range params {
					stmts[0].Params = append(stmts[0].Params, parseParam(p))
				}
			}
			results, err := c.Query(cmd.Context(), args[0], stmts...)
			if err != nil {
				return err
			}
			if f.json {
				return printJSON(cmd.OutOrStdout(), map[string]any{"result": results})
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "positional parameter (JSON value or string), repeatable")
	return cmd
}

func printResults(w io.Writer, results []client.Result) {
	for i, res := range results {
		if len(results) > 1 {
			fmt.Fprintf(w, "=> Statement %d:\n\n", i+1)
		}
		if len(res.Columns) > 0 {
			table := tablewriter.NewWriter(w)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetAutoFormatHeaders(false)
			table.SetHeader(res.Columns)
			for _, row := range res.Rows {
				data := make([]string, 0, len(row))
				for _, col := range row {
					data = append(data, formatValue(col))
				}
				table.Append(data)
			}
			table.Render()
		}
		fmt.Fprintf(w, "Rows read: %d, rows written: %d\n", res.Meta.RowsRead, res.Meta.RowsWritten)
		if len(results) > 1 && i < len(results)-1 {
			fmt.Fprintln(w)
		}
	}
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func newCellsCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "List cells known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			cells, err := c.Cells(cmd.Context())
			if err != nil {
				return err
			}
			if f.json {
				return printJSON(cmd.OutOrStdout(), cells)
			}
			printCells(cmd.OutOrStdout(), cells)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func printCells(w io.Writer, cells []client.Cell) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"NAME", "ID", "CREATED", "OPEN"})
	for _, c := range cells {
		table.Append([]string{c.Name, c.ID, c.CreatedAt.Format(time.RFC3339), fmt.Sprint(c.Open)})
	}
	table.Render()
}

func newDropCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "drop <cell>",
		Short: "Close a cell and delete its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			if err := c.Drop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		f     clientFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			evs, err := c.Audit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if f.json {
				return printJSON(cmd.OutOrStdout(), evs)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetHeader([]string{"TIME", "ACTOR", "ACTION", "ENTITY", "DETAIL"})
			for _, ev := range evs {
				table.Append([]string{ev.TS, ev.Actor, ev.Action, ev.EntityType + "/" + ev.EntityID, ev.Detail})
			}
			table.Render()
			return nil
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	return cmd
}
