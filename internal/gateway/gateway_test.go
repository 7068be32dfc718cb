package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/studio"
)

type fakeTarget struct {
	name string
	got  []studio.Command
	err  error
}

func (f *fakeTarget) Studio(_ context.Context, cmd studio.Command) (any, error) {
	f.got = append(f.got, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"cell": f.name}, nil
}

type fakeResolver map[string]*fakeTarget

func (f fakeResolver) Resolve(_ context.Context, name string) (Target, error) {
	t, ok := f[name]
	if !ok {
		return nil, errors.New("no such cell")
	}
	return t, nil
}

func newGateway(t *testing.T, res Resolver, opts Options) *Gateway {
	t.Helper()
	g, err := New(res, opts)
	require.NoError(t, err)
	return g
}

func do(g http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	return rec
}

func TestBasicAuthGate(t *testing.T) {
	g := newGateway(t, fakeResolver{}, Options{BasicAuth: httpx.BasicAuth{User: "u", Pass: "p"}})

	for name, hdr := range map[string]map[string]string{
		"missing":   nil,
		"malformed": {"Authorization": "Basic ???"},
		"wrong":     {"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("u:x"))},
	} {
		rec := do(g, http.MethodGet, "/studio", "", hdr)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, `Basic realm="Secure Area"`, rec.Header().Get("WWW-Authenticate"), name)
	}

	rec := do(g, http.MethodGet, "/studio", "", map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p")),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPages(t *testing.T) {
	g := newGateway(t, fakeResolver{}, Options{})

	rec := do(g, http.MethodGet, "/studio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="id"`)
	assert.NotContains(t, rec.Body.String(), "<iframe")

	rec = do(g, http.MethodGet, "/studio?id=books", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<iframe")
	assert.Contains(t, body, DefaultEditorURL+"?name=books")
	assert.Contains(t, body, `var cellID = "books"`)
	assert.Contains(t, body, "postMessage")

	g = newGateway(t, fakeResolver{}, Options{DisableHomepage: true})
	rec = do(g, http.MethodGet, "/studio", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	g = newGateway(t, fakeResolver{}, Options{DisableHomepage: true, EnforceID: "pinned"})
	rec = do(g, http.MethodGet, "/studio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `var cellID = "pinned"`)
}

func TestPostRelay(t *testing.T) {
	books := &fakeTarget{name: "books"}
	g := newGateway(t, fakeResolver{"books": books}, Options{})

	rec := do(g, http.MethodPost, "/studio", `{"type":"query","id":"books","statement":"SELECT 1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":{"cell":"books"}}`, rec.Body.String())
	require.Len(t, books.got, 1)
	assert.Equal(t, "SELECT 1", books.got[0].Statement)

	rec = do(g, http.MethodPost, "/studio", `{"type":"query","id":"nope","statement":"SELECT 1"}`, nil)
	assert.JSONEq(t, `{"error":"no such cell"}`, rec.Body.String())

	books.err = errors.New("")
	rec = do(g, http.MethodPost, "/studio", `{"type":"query","id":"books","statement":"SELECT 1"}`, nil)
	assert.JSONEq(t, `{"error":"Unknown error"}`, rec.Body.String())

	rec = do(g, http.MethodPost, "/studio", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnforceIDOverridesBody(t *testing.T) {
	pinned := &fakeTarget{name: "pinned"}
	g := newGateway(t, fakeResolver{"pinned": pinned}, Options{EnforceID: "pinned"})

	rec := do(g, http.MethodPost, "/studio", `{"type":"transaction","id":"other","statements":["SELECT 1"]}`, nil)
	assert.JSONEq(t, `{"result":{"cell":"pinned"}}`, rec.Body.String())
	require.Len(t, pinned.got, 1)
	assert.Equal(t, "pinned", pinned.got[0].ID)
}

func TestMethodNotAllowed(t *testing.T) {
	g := newGateway(t, fakeResolver{}, Options{})
	rec := do(g, http.MethodPut, "/studio", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", rec.Body.String())
}

func TestRelayMissingID(t *testing.T) {
	g := newGateway(t, fakeResolver{}, Options{})
	reply := g.Relay(context.Background(), studio.Command{Type: studio.TypeQuery, Statement: "SELECT 1"})
	assert.Equal(t, ErrMissingID.Error(), reply.Error)

	b, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "result")
}
