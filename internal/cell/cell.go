// Package cell hosts named SQL cells: one embedded database per name, with
// every request against a cell serialized.
package cell

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docxology/cellsql/internal/browsable"
	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/query"
	"github.com/docxology/cellsql/internal/studio"
)

// Cell is one named instance. All work on a cell runs under its mutex.
type Cell struct {
	id        string
	name      string
	createdAt time.Time

	mgr     *localdb.Manager
	exec    *query.Executor
	hook    *studio.Hook
	handler *browsable.Handler
	log     *logrus.Entry

	mu sync.Mutex
}

// newCell wires the cell's components. base builds the handler that
// receives requests the query route does not own; it may be nil.
func newCell(id, name string, mgr *localdb.Manager, base func(*Cell) http.Handler) *Cell {
	c := &Cell{
		id:        id,
		name:      name,
		createdAt: time.Now().UTC(),
		mgr:       mgr,
		log:       logging.WithCell(name).WithField("id", id),
	}
	c.exec = query.NewExecutor(mgr.DB, name)
	c.hook = studio.NewHook(mgr.DB)
	var next http.Handler
	if base != nil {
		next = base(c)
	}
	c.handler = browsable.New(c.exec, next)
	return c
}

// ID returns the stable id derived from the cell name.
func (c *Cell) ID() string { return c.id }

// Name returns the name the cell was addressed by.
func (c *Cell) Name() string { return c.name }

// Dir returns the cell's storage directory.
func (c *Cell) Dir() string { return c.mgr.Dir() }

// Executor exposes the cell's statement executor.
func (c *Cell) Executor() *query.Executor { return c.exec }

// ServeHTTP handles one request against the cell. Failures from the query
// route are logged and answered with a generic 500.
func (c *Cell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.handler.Handle(w, r); err != nil {
		c.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Studio runs an editor command against the cell's storage.
func (c *Cell) Studio(ctx context.Context, cmd studio.Command) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hook.Execute(ctx, cmd)
}

func (c *Cell) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mgr.Close()
}
