package localdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by Catalog.Get for a missing key.
var ErrNotFound = errors.New("not found")

// Catalog is a small sqlite key/value store storing JSON blobs, kept apart
// from the cell files so that cells stay schema-free.
// One table: kv(collection TEXT, key TEXT, value BLOB).
type Catalog struct{ db *sql.DB }

// OpenCatalog opens/creates the catalog database file under stateDir.
func OpenCatalog(stateDir string) (*Catalog, error) {
	if stateDir == "" {
		stateDir = "."
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open("sqlite", filepath.Join(stateDir, "catalog.sqlite"))
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	// WAL is best effort.
	_, _ = sqlDB.Exec("PRAGMA journal_mode=WAL;")
	schema := `CREATE TABLE IF NOT EXISTS kv (collection TEXT NOT NULL, key TEXT NOT NULL, value BLOB, PRIMARY KEY(collection, key))`
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Catalog{db: sqlDB}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) Put(collection, k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT INTO kv(collection,key,value) VALUES(?,?,?) ON CONFLICT(collection,key) DO UPDATE SET value=excluded.value`, collection, k, b)
	return err
}

func (c *Catalog) Get(collection, k string, out any) error {
	row := c.db.QueryRow(`SELECT value FROM kv WHERE collection=? AND key=?`, collection, k)
	var b []byte
	if err := row.Scan(&b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(b, out)
}

func (c *Catalog) Delete(collection, k string) error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE collection=? AND key=?`, collection, k)
	return err
}

func (c *Catalog) List(collection string, out any) error {
	rows, err := c.db.Query(`SELECT value FROM kv WHERE collection=? ORDER BY key`, collection)
	if err != nil {
		return err
	}
	defer rows.Close()
	arr := make([]json.RawMessage, 0)
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return err
		}
		arr = append(arr, append([]byte(nil), b...))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	bb, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	return json.Unmarshal(bb, out)
}

// CellRecord is the catalog entry written the first time a cell is addressed.
type CellRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

const cellsCollection = "cells"

// SaveCell records a cell unless it is already known. The original
// CreatedAt is kept for existing records.
func (c *Catalog) SaveCell(rec CellRecord) error {
	var existing CellRecord
	err := c.Get(cellsCollection, rec.ID, &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return c.Put(cellsCollection, rec.ID, rec)
}

// DeleteCell removes a cell record.
func (c *Catalog) DeleteCell(id string) error {
	return c.Delete(cellsCollection, id)
}

// ListCells lists every recorded cell.
func (c *Catalog) ListCells(out *[]CellRecord) error {
	return c.List(cellsCollection, out)
}
