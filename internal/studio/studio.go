// Package studio executes operator commands from the browser query editor
// directly against a cell's storage.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docxology/cellsql/internal/localdb"
)

// Command types.
const (
	TypeQuery       = "query"
	TypeTransaction = "transaction"
)

var (
	ErrUnknownCommand   = errors.New("unknown studio command")
	ErrMissingStatement = errors.New("studio command has no statement")
)

// maxRenameAttempts bounds the collision-safe header renaming.
const maxRenameAttempts = 20

// Command is one editor request. ID names the target cell.
type Command struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Statement  string   `json:"statement,omitempty"`
	Statements []string `json:"statements,omitempty"`
}

// Header describes one result column. Name is unique within a result;
// DisplayName is the column name the engine reported.
type Header struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	OriginalType string `json:"originalType"`
	Type         *int   `json:"type,omitempty"`
}

// Stat carries execution statistics. Duration and affected rows are not
// measured and stay zero.
type Stat struct {
	QueryDurationMs int64 `json:"queryDurationMs"`
	RowsAffected    int64 `json:"rowsAffected"`
	RowsRead        int64 `json:"rowsRead"`
	RowsWritten     int64 `json:"rowsWritten"`
}

// Result is the editor's view of one statement.
type Result struct {
	Headers []Header         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
	Stat    Stat             `json:"stat"`
}

// Storage is the SQL surface the hook drives.
type Storage interface {
	Exec(ctx context.Context, query string, args ...any) (*localdb.Cursor, error)
	Transaction(ctx context.Context, f func(ctx context.Context, tx *localdb.Tx) error) error
}

// Hook runs commands against one cell's storage.
type Hook struct {
	store Storage
}

// NewHook binds a hook to store.
func NewHook(store Storage) *Hook { return &Hook{store: store} }

// Execute runs cmd. A query returns a single Result; a transaction returns
// one Result per statement and is rolled back entirely if any statement
// fails.
func (h *Hook) Execute(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Type {
	case TypeQuery:
		if strings.TrimSpace(cmd.Statement) == "" {
			return nil, ErrMissingStatement
		}
		cur, err := h.store.Exec(ctx, cmd.Statement)
		if err != nil {
			return nil, err
		}
		return Transform(cur), nil
	case TypeTransaction:
		if len(cmd.Statements) == 0 {
			return nil, ErrMissingStatement
		}
		results := make([]Result, 0, len(cmd.Statements))
		err := h.store.Transaction(ctx, func(ctx context.Context, tx *localdb.Tx) error {
			for i, st := range cmd.Statements {
				cur, err := tx.Exec(ctx, st)
				if err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
				results = append(results, Transform(cur))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return results, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// Transform converts a cursor into the editor's result shape, renaming
// colliding column names to __<name>_<n>.
func Transform(cur *localdb.Cursor) Result {
	res := Result{Headers: []Header{}, Rows: []map[string]any{}}
	if cur == nil {
		return res
	}
	names := make([]string, len(cur.Columns))
	taken := make(map[string]bool, len(cur.Columns))
	for i, col := range cur.Columns {
		name := col
		if taken[name] {
			for n := 0; n < maxRenameAttempts; n++ {
				name = fmt.Sprintf("__%s_%d", col, n)
				if !taken[name] {
					break
				}
			}
		}
		taken[name] = true
		names[i] = name
		res.Headers = append(res.Headers, Header{Name: name, DisplayName: col, OriginalType: "text"})
	}
	for _, row := range cur.Rows {
		m := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(row) {
				m[name] = row[i]
			}
		}
		res.Rows = append(res.Rows, m)
	}
	res.Stat = Stat{RowsRead: cur.RowsRead, RowsWritten: cur.RowsWritten}
	return res
}
