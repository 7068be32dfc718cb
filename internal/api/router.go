package api

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/docxology/cellsql/internal/audit"
	"github.com/docxology/cellsql/internal/cell"
	"github.com/docxology/cellsql/internal/gateway"
	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/metrics"
	"github.com/docxology/cellsql/internal/ws"
)

// CellsPrefix is where cells are mounted: /cells/{name}/...
const CellsPrefix = "/cells/"

// Deps are runtime dependencies for the daemon API.
type Deps struct {
	Registry *cell.Registry
	Gateway  *gateway.Gateway
	// StudioPath mounts the gateway; the relay socket sits at StudioPath+"/ws".
	StudioPath string
	Token      string // optional bearer token for mutating endpoints
}

// CellEntry is one row of GET /api/cells.
type CellEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Open      bool      `json:"open"`
}

// Handler returns the router wrapped in request id and access logging.
func Handler(deps Deps) http.Handler {
	return httpx.RequestID(httpx.Logging(Router(deps)))
}

// Router wires the daemon endpoints.
func Router(deps Deps) *mux.Router {
	if deps.StudioPath == "" {
		deps.StudioPath = "/studio"
	}
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "no route for "+r.URL.Path, "not_found")
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.Text(w, http.StatusOK, "ok")
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	apiR := r.PathPrefix("/api").Subrouter()
	apiR.Use(httpx.CORS("*"))
	apiR.HandleFunc("/cells", listCells(deps)).Methods(http.MethodGet, http.MethodOptions)
	apiR.HandleFunc("/cells/{name}", getCell(deps)).Methods(http.MethodGet, http.MethodOptions)
	apiR.HandleFunc("/cells/{name}", dropCell(deps)).Methods(http.MethodDelete)
	apiR.HandleFunc("/audit", listAudit(deps)).Methods(http.MethodGet, http.MethodOptions)

	if deps.Gateway != nil {
		r.Handle(deps.StudioPath+"/ws", ws.RelayHandler(deps.Gateway))
		r.Handle(deps.StudioPath, deps.Gateway)
	}

	r.PathPrefix(CellsPrefix + "{name}").HandlerFunc(serveCell(deps))
	return r
}

// authOK allows mutating calls with the bearer token, or from loopback
// clients when no token is configured.
func authOK(deps Deps, w http.ResponseWriter, r *http.Request) bool {
	tok := strings.TrimSpace(deps.Token)
	if tok == "" {
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return true
		}
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && strings.TrimSpace(authz[7:]) == tok {
		return true
	}
	if r.Header.Get("X-API-Token") == tok {
		return true
	}
	httpx.JSONError(w, http.StatusUnauthorized, "unauthorized")
	return false
}

// cellName reads the {name} var. mux matches on the decoded path, so the
// var is used as is.
func cellName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if !cell.ValidName(name) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid cell name", "invalid_name")
		return "", false
	}
	return name, true
}

func serveCell(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := cellName(w, r)
		if !ok {
			return
		}
		c, err := deps.Registry.Get(r.Context(), name)
		if err != nil {
			logging.WithCell(name).WithError(err).Error("open cell")
			httpx.JSONError(w, http.StatusInternalServerError, "cell unavailable")
			return
		}
		c.ServeHTTP(w, stripCell(r, name))
	}
}

// stripCell hands the cell a request whose path starts after /cells/{name}.
// The raw path is dropped since the prefix was matched in decoded form.
func stripCell(r *http.Request, name string) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = strings.TrimPrefix(r.URL.Path, CellsPrefix+name)
	r2.URL.RawPath = ""
	return r2
}

func entries(deps Deps) ([]CellEntry, error) {
	byID := map[string]*CellEntry{}
	if cat := deps.Registry.Catalog(); cat != nil {
		var recs []localdb.CellRecord
		if err := cat.ListCells(&recs); err != nil {
			return nil, err
		}
		for _, rec := range recs {
			byID[rec.ID] = &CellEntry{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt}
		}
	}
	for _, st := range deps.Registry.List() {
		e, ok := byID[st.ID]
		if !ok {
			e = &CellEntry{ID: st.ID, Name: st.Name, CreatedAt: st.CreatedAt}
			byID[st.ID] = e
		}
		e.Open = true
	}
	out := make([]CellEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func listCells(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := entries(deps)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func getCell(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := cellName(w, r)
		if !ok {
			return
		}
		out, err := entries(deps)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, e := range out {
			if e.Name == name {
				httpx.JSON(w, http.StatusOK, e)
				return
			}
		}
		httpx.JSONError(w, http.StatusNotFound, "unknown cell "+name, "not_found")
	}
}

func dropCell(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authOK(deps, w, r) {
			return
		}
		name, ok := cellName(w, r)
		if !ok {
			return
		}
		if err := deps.Registry.Drop(name); err != nil {
			if errors.Is(err, cell.ErrInvalidName) {
				httpx.JSONError(w, http.StatusBadRequest, err.Error(), "invalid_name")
				return
			}
			httpx.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logging.WithCell(name).Info("cell dropped")
		audit.Append(deps.Registry.Catalog(), actor(r), "cell.drop", "cell", name, "")
		w.WriteHeader(http.StatusNoContent)
	}
}

// actor names the caller for audit events.
func actor(r *http.Request) string {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" || r.Header.Get("X-API-Token") != "" {
		return "token"
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func listAudit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				httpx.JSONError(w, http.StatusBadRequest, "limit must be a non-negative integer", "bad_request")
				return
			}
			limit = n
		}
		evs, err := audit.List(deps.Registry.Catalog(), limit)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if evs == nil {
			evs = []audit.Event{}
		}
		httpx.JSON(w, http.StatusOK, evs)
	}
}
