package query

import "github.com/docxology/cellsql/internal/localdb"

// Normalize shapes a cursor. A nil cursor yields nil so callers can tell an
// absent result apart from an empty one.
func Normalize(cur *localdb.Cursor, raw bool) any {
	if cur == nil {
		return nil
	}
	if raw {
		return normalizeRaw(cur)
	}
	return Objects(cur.ToArray())
}

func normalizeRaw(cur *localdb.Cursor) *RawResult {
	cols := cur.Columns
	if cols == nil {
		cols = []string{}
	}
	return &RawResult{
		Columns: cols,
		Rows:    cur.Raw(),
		Meta: Meta{
			RowsRead:    cur.RowsRead,
			RowsWritten: cur.RowsWritten,
		},
	}
}
