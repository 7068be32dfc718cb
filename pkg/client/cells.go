package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Statement is one SQL statement with positional parameters.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Meta counts rows touched by a statement.
type Meta struct {
	RowsRead    int64 `json:"rows_read"`
	RowsWritten int64 `json:"rows_written"`
}

// Result is one statement's raw result. Numbers decode as json.Number.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Meta    Meta     `json:"meta"`
}

// Cell describes a known cell.
type Cell struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Open      bool      `json:"open"`
}

// AuditEvent is one recorded action.
type AuditEvent struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Detail     string `json:"detail,omitempty"`
	TS         string `json:"ts"`
}

type queryRequest struct {
	Transaction []Statement `json:"transaction"`
}

type queryResponse struct {
	Result []Result `json:"result"`
	Error  string   `json:"error,omitempty"`
}

func cellPath(name string) string {
	return "/cells/" + url.PathEscape(name)
}

// Query runs stmts as one transaction on the named cell. The cell is
// created on first use.
func (c *Client) Query(ctx context.Context, cell string, stmts ...Statement) ([]Result, error) {
	if len(stmts) == 0 {
		return nil, fmt.Errorf("no statements")
	}
	var resp queryResponse
	if err := c.post(ctx, cellPath(cell)+"/query/raw", queryRequest{Transaction: stmts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("query failed: %s", resp.Error)
	}
	return resp.Result, nil
}

// Cells lists cells known to the daemon.
func (c *Client) Cells(ctx context.Context) ([]Cell, error) {
	var out []Cell
	if err := c.get(ctx, "/api/cells", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cell returns one cell, or ErrNotFound.
func (c *Client) Cell(ctx context.Context, name string) (*Cell, error) {
	var out Cell
	if err := c.get(ctx, "/api"+cellPath(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Drop closes a cell and removes its data.
func (c *Client) Drop(ctx context.Context, name string) error {
	return c.delete(ctx, "/api"+cellPath(name))
}

// Audit returns up to limit events, newest first.
func (c *Client) Audit(ctx context.Context, limit int) ([]AuditEvent, error) {
	var out []AuditEvent
	if err := c.get(ctx, fmt.Sprintf("/api/audit?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the daemon answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// IsNotFound reports whether err came from a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
