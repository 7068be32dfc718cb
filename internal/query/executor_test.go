package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
)

// scriptedEngine returns canned cursors keyed by SQL text. Unknown SQL yields
// a nil cursor.
type scriptedEngine struct {
	cursors map[string]*localdb.Cursor
	errs    map[string]error
	calls   []string
	args    [][]any
}

func (e *scriptedEngine) Exec(_ context.Context, query string, args ...any) (*localdb.Cursor, error) {
	e.calls = append(e.calls, query)
	e.args = append(e.args, args)
	if err := e.errs[query]; err != nil {
		return nil, err
	}
	return e.cursors[query], nil
}

func openDB(t *testing.T) *localdb.DB {
	t.Helper()
	db, err := localdb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExecuteTransactionOrder(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	ex := NewExecutor(db, "order")
	res, err := ex.ExecuteTransaction(ctx, []Statement{
		{SQL: "INSERT INTO t (name) VALUES (?)", Params: []any{"a"}},
		{SQL: "SELECT id, name FROM t"},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, []string{}, res[0].Columns)
	assert.Empty(t, res[0].Rows)
	assert.EqualValues(t, 1, res[0].Meta.RowsWritten)

	assert.Equal(t, []string{"id", "name"}, res[1].Columns)
	assert.Equal(t, [][]any{{int64(1), "a"}}, res[1].Rows)
	assert.EqualValues(t, 1, res[1].Meta.RowsRead)
	assert.EqualValues(t, 0, res[1].Meta.RowsWritten)
}

func TestExecuteTransactionCollapses(t *testing.T) {
	ok := &localdb.Cursor{Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}
	for pos := 0; pos < 3; pos++ {
		eng := &scriptedEngine{cursors: map[string]*localdb.Cursor{}}
		stmts := make([]Statement, 3)
		for i := range stmts {
			sql := "SELECT " + string(rune('a'+i))
			stmts[i] = Statement{SQL: sql}
			if i != pos {
				eng.cursors[sql] = ok
			}
		}
		res, err := NewExecutor(eng, "collapse").ExecuteTransaction(context.Background(), stmts)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res, "nil cursor at %d", pos)
		// execution stops at the first absent cursor
		assert.Len(t, eng.calls, pos+1)
	}
}

func TestExecuteQueryShapes(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	ex := NewExecutor(db, "shapes")

	out, err := ex.ExecuteQuery(ctx, Statement{SQL: "SELECT 1 AS a, 'x' AS b"}, false)
	require.NoError(t, err)
	assert.Equal(t, Objects{{"a": int64(1), "b": "x"}}, out)

	out, err = ex.ExecuteQuery(ctx, Statement{SQL: "SELECT ? AS a", Params: []any{int64(5)}}, true)
	require.NoError(t, err)
	raw, ok := out.(*RawResult)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, raw.Columns)
	assert.Equal(t, [][]any{{int64(5)}}, raw.Rows)
}

func TestExecuteQueryWithoutEngine(t *testing.T) {
	ex := NewExecutor(nil, "none")

	out, err := ex.ExecuteQuery(context.Background(), Statement{SQL: "SELECT 1"}, true)
	require.NoError(t, err)
	assert.Equal(t, Objects{}, out)

	res, err := ex.ExecuteTransaction(context.Background(), []Statement{{SQL: "SELECT 1"}})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestExecuteQueryEngineWithoutCursor(t *testing.T) {
	prev := logging.Log.GetLevel()
	logging.Log.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() { logging.Log.SetLevel(prev) })

	eng := &scriptedEngine{cursors: map[string]*localdb.Cursor{}}
	ex := NewExecutor(eng, "nocursor")

	for _, raw := range []bool{true, false} {
		out, err := ex.ExecuteQuery(context.Background(), Statement{SQL: "SELECT 1"}, raw)
		require.NoError(t, err)
		assert.Equal(t, Objects{}, out)
	}

	res, err := ex.ExecuteTransaction(context.Background(), []Statement{{SQL: "SELECT 1"}})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, []string{"SELECT 1", "SELECT 1", "SELECT 1"}, eng.calls)
}

func TestExecuteQueryParamsBinding(t *testing.T) {
	eng := &scriptedEngine{cursors: map[string]*localdb.Cursor{"SELECT 1": {}}}
	ex := NewExecutor(eng, "bind")

	_, err := ex.ExecuteQuery(context.Background(), Statement{SQL: "SELECT 1", Params: []any{}}, true)
	require.NoError(t, err)
	_, err = ex.ExecuteQuery(context.Background(), Statement{SQL: "SELECT 1", Params: []any{int64(2)}}, true)
	require.NoError(t, err)

	require.Len(t, eng.args, 2)
	assert.Empty(t, eng.args[0])
	assert.Equal(t, []any{int64(2)}, eng.args[1])
}

func TestExecuteErrors(t *testing.T) {
	boom := errors.New("no such table: missing")
	eng := &scriptedEngine{
		cursors: map[string]*localdb.Cursor{"SELECT 1": {}},
		errs:    map[string]error{"SELECT * FROM missing": boom},
	}
	ex := NewExecutor(eng, "errs")

	_, err := ex.ExecuteQuery(context.Background(), Statement{SQL: "SELECT * FROM missing"}, false)
	require.ErrorIs(t, err, boom)

	_, err = ex.ExecuteTransaction(context.Background(), []Statement{{SQL: "SELECT 1"}, {SQL: "SELECT * FROM missing"}})
	require.ErrorIs(t, err, boom)

	_, err = ex.ExecuteQuery(context.Background(), Statement{SQL: "  "}, true)
	require.ErrorIs(t, err, ErrEmptyStatement)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"sql":"SELECT ?, ?, ?, ?","params":[1, 2.5, "s", [1,2]]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5, "s", "[1,2]"}, req.Params)
	require.Len(t, req.Statements(), 1)
	assert.Equal(t, "SELECT ?, ?, ?, ?", req.Statements()[0].SQL)

	req, err = DecodeRequest(strings.NewReader(`{"transaction":[{"sql":"SELECT ?","params":[null, true]},{"sql":"SELECT 2"}]}`))
	require.NoError(t, err)
	stmts := req.Statements()
	require.Len(t, stmts, 2)
	assert.Equal(t, []any{nil, true}, stmts[0].Params)
	assert.Nil(t, stmts[1].Params)

	_, err = DecodeRequest(strings.NewReader(`{"sql":`))
	require.Error(t, err)
}
