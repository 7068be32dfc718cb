package cell

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/metrics"
)

// ErrInvalidName is returned for names that cannot address a cell.
var ErrInvalidName = errors.New("invalid cell name")

// maxNameLen bounds cell names.
const maxNameLen = 128

// Namespace seeds name-derived cell ids.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cellsql://cells"))

// IDFromName returns the stable id for name. The same name always maps to
// the same id, across processes.
func IDFromName(name string) string {
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}

// ValidName reports whether name can address a cell.
func ValidName(name string) bool {
	if name == "" || len(name) > maxNameLen {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Status is a lightweight view of an open cell.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dir       string    `json:"dir"`
	CreatedAt time.Time `json:"created_at"`
}

// Options for the registry.
type Options struct {
	StateDir string
	// Catalog records every addressed cell. Optional.
	Catalog *localdb.Catalog
	// Base builds the handler that receives requests a cell's query route
	// does not own. Optional.
	Base func(*Cell) http.Handler
}

// Registry maps names to open cells. A name resolves to the same *Cell for
// the lifetime of the registry unless it is closed.
type Registry struct {
	mu    sync.RWMutex
	opts  Options
	items map[string]*Cell
}

func NewRegistry(opts Options) *Registry {
	if opts.StateDir == "" {
		opts.StateDir = "."
	}
	return &Registry{opts: opts, items: map[string]*Cell{}}
}

func (r *Registry) cellsDir() string { return filepath.Join(r.opts.StateDir, "cells") }

// Get returns the open cell for name, opening its storage on first use.
func (r *Registry) Get(ctx context.Context, name string) (*Cell, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	r.mu.RLock()
	if c, ok := r.items[name]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.items[name]; ok {
		return c, nil
	}
	id := IDFromName(name)
	mgr, err := localdb.OpenManager(ctx, r.cellsDir(), id)
	if err != nil {
		return nil, fmt.Errorf("open cell %s: %w", name, err)
	}
	c := newCell(id, name, mgr, r.opts.Base)
	if r.opts.Catalog != nil {
		if err := r.opts.Catalog.SaveCell(localdb.CellRecord{ID: id, Name: name, CreatedAt: c.createdAt}); err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("record cell %s: %w", name, err)
		}
	}
	r.items[name] = c
	metrics.CellOpened()
	logging.WithCell(name).WithField("dir", mgr.Dir()).Info("cell opened")
	return c, nil
}

// Close releases an open cell. Closing an unknown name is a no-op.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(name)
}

func (r *Registry) closeLocked(name string) error {
	c, ok := r.items[name]
	if !ok {
		return nil
	}
	delete(r.items, name)
	metrics.CellClosed()
	logging.WithCell(name).Info("cell closed")
	return c.close()
}

// Drop closes the cell and deletes its storage and catalog record. A
// concurrent Get waits until the files are gone and then opens a fresh cell.
func (r *Registry) Drop(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.closeLocked(name); err != nil {
		return err
	}
	id := IDFromName(name)
	if err := os.RemoveAll(filepath.Join(r.cellsDir(), id)); err != nil {
		return fmt.Errorf("remove cell %s: %w", name, err)
	}
	if r.opts.Catalog != nil {
		if err := r.opts.Catalog.DeleteCell(id); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every open cell and joins the failures.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	r.mu.RUnlock()
	var errs []error
	for _, name := range names {
		if err := r.Close(name); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// List returns the open cells sorted by name.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, Status{ID: c.id, Name: c.name, Dir: c.Dir(), CreatedAt: c.createdAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog returns the configured catalog, or nil.
func (r *Registry) Catalog() *localdb.Catalog { return r.opts.Catalog }
