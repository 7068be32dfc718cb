package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docxology/cellsql/internal/logging"
)

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorPayload is the canonical error response shape.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request_id,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSONError writes a structured error. httpStatus is the HTTP status; an
// optional first extra argument overrides the machine code and a second one
// is attached as details.
func JSONError(w http.ResponseWriter, httpStatus int, msg string, errCodeAndDetails ...any) {
	errCode := http.StatusText(httpStatus)
	var details any
	if len(errCodeAndDetails) > 0 {
		if s, ok := errCodeAndDetails[0].(string); ok && s != "" {
			errCode = s
		}
	}
	if len(errCodeAndDetails) > 1 {
		details = errCodeAndDetails[1]
	}
	// RequestID has already put the id on the response headers.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	payload := ErrorPayload{Code: errCode, Message: msg, Request: w.Header().Get("X-Request-Id"), Details: details}
	_ = json.NewEncoder(w).Encode(payload)
}

// Text writes a plain-text body with the given status.
func Text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

// RequestID middleware adds/propagates a request ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		ctx := context.WithValue(r.Context(), reqIDKey, rid)
		r2 := r.WithContext(ctx)
		r2.Header.Set("X-Request-Id", rid)
		next.ServeHTTP(w, r2)
	})
}

// Logging middleware logs one line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &respWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.URL.Path
		if q := r.URL.RawQuery; q != "" {
			path += "?" + q
		}
		entry := logging.WithFields(logrus.Fields{
			"req_id": ReqIDFromCtx(r.Context()),
			"method": r.Method,
			"path":   path,
			"status": rw.code,
			"dur_ms": time.Since(start).Milliseconds(),
			"remote": r.RemoteAddr,
		})
		if rw.code >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Info("request")
	})
}

type respWriter struct {
	http.ResponseWriter
	code int
}

func (w *respWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (w *respWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacker not supported")
}

func (w *respWriter) ReadFrom(r io.Reader) (n int64, err error) {
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}
	return io.Copy(w.ResponseWriter, r)
}

type ctxKey string

const reqIDKey ctxKey = "req_id"

// ReqIDFromCtx returns the request id set by RequestID, if any.
func ReqIDFromCtx(ctx context.Context) string {
	if v := ctx.Value(reqIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
