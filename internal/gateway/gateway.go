// Package gateway serves the browser query editor for cells: a landing page,
// the editor page, and the command relay the editor page posts to.
package gateway

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flosch/pongo2/v6"

	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/metrics"
	"github.com/docxology/cellsql/internal/studio"
)

// DefaultEditorURL hosts the embedded SQL editor.
const DefaultEditorURL = "https://libsqlstudio.com/embed/sqlite"

// UnknownError is relayed when a failure carries no message.
const UnknownError = "Unknown error"

var ErrMissingID = errors.New("no cell id given")

//go:embed templates/*.html
var templateFS embed.FS

// Target is the instance a command is forwarded to.
type Target interface {
	Studio(ctx context.Context, cmd studio.Command) (any, error)
}

// Resolver maps a cell name to its instance.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Target, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, name string) (Target, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) (Target, error) { return f(ctx, name) }

// Options configures the gateway.
type Options struct {
	// Path is where the gateway is mounted; the editor page posts back to it.
	Path string
	// Title is shown on both pages.
	Title string
	// EditorURL overrides DefaultEditorURL.
	EditorURL string
	// BasicAuth gates every request when set.
	BasicAuth httpx.BasicAuth
	// EnforceID pins every request to one cell.
	EnforceID string
	// DisableHomepage answers 404 instead of the landing page.
	DisableHomepage bool
	// OnCommand observes every relayed command after it ran.
	OnCommand func(ctx context.Context, cmd studio.Command, err error)
}

// Reply is the relay response.
type Reply struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Gateway is stateless apart from its parsed templates.
type Gateway struct {
	opts     Options
	resolver Resolver
	landing  *pongo2.Template
	editor   *pongo2.Template
}

// New parses the page templates and returns the gateway.
func New(resolver Resolver, opts Options) (*Gateway, error) {
	if opts.Path == "" {
		opts.Path = "/studio"
	}
	if opts.Title == "" {
		opts.Title = "cellsql studio"
	}
	if opts.EditorURL == "" {
		opts.EditorURL = DefaultEditorURL
	}
	set := pongo2.NewSet("gateway", pongo2.DefaultLoader)
	for _, tag := range []string{"extends", "import", "include", "ssi"} {
		if err := set.BanTag(tag); err != nil {
			return nil, fmt.Errorf("configure templates: ban %q: %w", tag, err)
		}
	}
	g := &Gateway{opts: opts, resolver: resolver}
	var err error
	if g.landing, err = parse(set, "templates/landing.html"); err != nil {
		return nil, err
	}
	if g.editor, err = parse(set, "templates/studio.html"); err != nil {
		return nil, err
	}
	return g, nil
}

func parse(set *pongo2.TemplateSet, name string) (*pongo2.Template, error) {
	b, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	tpl, err := set.FromString(string(b))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return tpl, nil
}

// Auth returns the configured credential gate.
func (g *Gateway) Auth() httpx.BasicAuth { return g.opts.BasicAuth }

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.opts.BasicAuth.Check(r) {
		httpx.Challenge(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		g.page(w, r)
	case http.MethodPost:
		var cmd studio.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid studio command", "bad_request")
			return
		}
		httpx.JSON(w, http.StatusOK, g.Relay(r.Context(), cmd))
	default:
		w.Header().Set("Allow", "GET, POST")
		httpx.Text(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (g *Gateway) page(w http.ResponseWriter, r *http.Request) {
	id := g.opts.EnforceID
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	ctx := pongo2.Context{"title": g.opts.Title, "path": g.opts.Path}
	tpl := g.landing
	if id != "" {
		tpl = g.editor
		ctx["id"] = id
		ctx["editor_url"] = g.opts.EditorURL
	} else if g.opts.DisableHomepage {
		httpx.Text(w, http.StatusNotFound, "Not found")
		return
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		logging.Log.WithError(err).Error("render studio page")
		httpx.Text(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// Relay resolves the command's cell and runs the command there. Failures are
// reported in the reply, never as an error.
func (g *Gateway) Relay(ctx context.Context, cmd studio.Command) Reply {
	if g.opts.EnforceID != "" {
		cmd.ID = g.opts.EnforceID
	}
	res, err := g.relay(ctx, cmd)
	metrics.IncStudio(cmd.Type, err)
	if g.opts.OnCommand != nil {
		g.opts.OnCommand(ctx, cmd, err)
	}
	if err != nil {
		logging.WithCell(cmd.ID).WithError(err).WithField("type", cmd.Type).Warn("studio command failed")
		msg := err.Error()
		if msg == "" {
			msg = UnknownError
		}
		return Reply{Error: msg}
	}
	return Reply{Result: res}
}

func (g *Gateway) relay(ctx context.Context, cmd studio.Command) (any, error) {
	if cmd.ID == "" {
		return nil, ErrMissingID
	}
	target, err := g.resolver.Resolve(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	return target.Studio(ctx, cmd)
}
