package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Statement is one SQL statement with positional parameters.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Request is the /query/raw body. Without Transaction the top-level SQL and
// Params form a one-statement transaction.
type Request struct {
	SQL         string      `json:"sql,omitempty"`
	Params      []any       `json:"params,omitempty"`
	Transaction []Statement `json:"transaction,omitempty"`
}

// Statements returns the batch the request describes.
func (r Request) Statements() []Statement {
	if r.Transaction != nil {
		return r.Transaction
	}
	return []Statement{{SQL: r.SQL, Params: r.Params}}
}

// Meta carries the engine counters for one statement.
type Meta struct {
	RowsRead    int64 `json:"rows_read"`
	RowsWritten int64 `json:"rows_written"`
}

// RawResult is the columnar result shape.
type RawResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Meta    Meta     `json:"meta"`
}

// Objects is the keyed result shape: one map per row.
type Objects []map[string]any

// DecodeRequest reads a Request from r. Numbers keep their exact form so
// integral parameters bind as integers rather than reals.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode query request: %w", err)
	}
	req.Params = bindable(req.Params)
	for i := range req.Transaction {
		req.Transaction[i].Params = bindable(req.Transaction[i].Params)
	}
	return req, nil
}

// bindable converts decoded JSON values into driver arguments.
func bindable(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = bindValue(p)
	}
	return out
}

func bindValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any, map[string]any:
		// Composite values are bound as their JSON text.
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(x); err != nil {
			return fmt.Sprint(x)
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n"))
	default:
		return v
	}
}
