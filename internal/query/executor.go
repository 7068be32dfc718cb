package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/metrics"
)

// ErrEmptyStatement is returned for a statement without SQL text.
var ErrEmptyStatement = errors.New("statement has no sql")

// Engine is the SQL surface a cell exposes to the executor.
type Engine interface {
	Exec(ctx context.Context, query string, args ...any) (*localdb.Cursor, error)
}

// Executor runs statements against an optional Engine. Without an engine
// every statement yields an absent cursor.
type Executor struct {
	engine Engine
	cell   string
	log    *logrus.Entry
}

// NewExecutor binds an executor to engine. Pass a nil interface when the
// cell has no SQL storage.
func NewExecutor(engine Engine, cell string) *Executor {
	return &Executor{engine: engine, cell: cell, log: logging.WithCell(cell)}
}

// ExecuteQuery runs one statement. Engine failures are logged and returned
// unmodified; they are never retried.
func (e *Executor) ExecuteQuery(ctx context.Context, st Statement, raw bool) (any, error) {
	cur, err := e.exec(ctx, st)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return Objects{}, nil
	}
	return Normalize(cur, raw), nil
}

// ExecuteTransaction runs statements in order in raw mode. The first
// statement without a cursor collapses the whole result to an empty list;
// statements already executed are not undone.
func (e *Executor) ExecuteTransaction(ctx context.Context, statements []Statement) ([]RawResult, error) {
	results := make([]RawResult, 0, len(statements))
	for _, st := range statements {
		cur, err := e.exec(ctx, st)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			e.log.Warn("statement returned no cursor, returning empty result")
			return []RawResult{}, nil
		}
		results = append(results, *normalizeRaw(cur))
	}
	return results, nil
}

func (e *Executor) exec(ctx context.Context, st Statement) (*localdb.Cursor, error) {
	if e.engine == nil {
		return nil, nil
	}
	if strings.TrimSpace(st.SQL) == "" {
		e.log.WithError(ErrEmptyStatement).Error("SQL execution error")
		return nil, ErrEmptyStatement
	}
	start := time.Now()
	var (
		cur *localdb.Cursor
		err error
	)
	if len(st.Params) > 0 {
		cur, err = e.engine.Exec(ctx, st.SQL, st.Params...)
	} else {
		cur, err = e.engine.Exec(ctx, st.SQL)
	}
	metrics.ObserveStatement(e.cell, time.Since(start), err)
	if err != nil {
		e.log.WithError(err).WithField("sql", st.SQL).Error("SQL execution error")
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}
	e.log.WithFields(logrus.Fields{"sql": st.SQL, "rows_read": cur.RowsRead, "rows_written": cur.RowsWritten}).Debug("statement executed")
	return cur, nil
}
