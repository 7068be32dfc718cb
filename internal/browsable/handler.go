// Package browsable adds the SQL query route to an existing cell handler.
//
// A Handler owns a fixed route table. Requests it does not recognise fall
// through to the wrapped handler, or get a plain 404 when there is none.
package browsable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/query"
)

// QueryRawPath is the only route the handler owns.
const QueryRawPath = "/query/raw"

// Executor is the execution surface the handler needs.
type Executor interface {
	ExecuteTransaction(ctx context.Context, statements []query.Statement) ([]query.RawResult, error)
}

// Response is the /query/raw body. Error is never set on success and is
// omitted from the wire.
type Response struct {
	Result []query.RawResult `json:"result"`
	Error  string            `json:"error,omitempty"`
}

// Handler serves its own routes and delegates everything else to Next.
type Handler struct {
	exec Executor
	next http.Handler
	// route table: path -> method -> fn
	routes map[string]map[string]func(http.ResponseWriter, *http.Request) error
}

// New builds the handler once for a cell. next may be nil.
func New(exec Executor, next http.Handler) *Handler {
	h := &Handler{exec: exec, next: next}
	h.routes = map[string]map[string]func(http.ResponseWriter, *http.Request) error{
		QueryRawPath: {
			http.MethodOptions: h.preflight,
			http.MethodPost:    h.queryRaw,
		},
	}
	return h
}

// Handle dispatches r. Errors from the query route are returned to the host
// unwritten; the response has not been started when an error comes back.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) error {
	if fn, ok := h.routes[r.URL.Path][r.Method]; ok {
		return fn(w, r)
	}
	if h.next != nil {
		h.next.ServeHTTP(w, r)
		return nil
	}
	NotFound(w)
	return nil
}

// ServeHTTP adapts Handle for direct mounting. Errors become a generic 500.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Handle(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// NotFound writes the plain-text 404 used for unrecognised routes.
func NotFound(w http.ResponseWriter) {
	httpx.Text(w, http.StatusNotFound, "Not found")
}

func (h *Handler) preflight(w http.ResponseWriter, _ *http.Request) error {
	httpx.Preflight(w)
	return nil
}

func (h *Handler) queryRaw(w http.ResponseWriter, r *http.Request) error {
	req, err := query.DecodeRequest(r.Body)
	if err != nil {
		return err
	}
	res, err := h.exec.ExecuteTransaction(r.Context(), req.Statements())
	if err != nil {
		return fmt.Errorf("query raw: %w", err)
	}
	if res == nil {
		res = []query.RawResult{}
	}
	body, err := json.Marshal(Response{Result: res})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	httpx.SetQueryCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}
