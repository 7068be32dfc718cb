package localdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager controls a single cell database under stateDir/<cellID>.
type Manager struct {
	dir string
	DB  *DB
}

// OpenManager opens or creates stateDir/<cellID>/cell.sqlite with
// retry/backoff semantics. A nil ctx is treated as context.Background().
func OpenManager(ctx context.Context, stateDir, cellID string) (*Manager, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if stateDir == "" {
		stateDir = "."
	}
	dir := filepath.Join(stateDir, cellID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	var (
		db  *DB
		err error
	)
	// 5 attempts with backoff
	for i := 0; i < 5; i++ {
		db, err = Open(dir)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open cell db: %w", err)
	}
	return &Manager{dir: dir, DB: db}, nil
}

// Close releases the underlying sqlite handle.
func (m *Manager) Close() error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

// Dir returns the cell directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the database file path.
func (m *Manager) Path() string {
	if m == nil || m.DB == nil {
		return ""
	}
	return m.DB.Path()
}
