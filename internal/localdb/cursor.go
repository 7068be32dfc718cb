package localdb

// Cursor is a fully drained statement result. Values are left exactly as the
// driver returned them (int64, float64, string, []byte or nil).
type Cursor struct {
	Columns     []string
	Rows        [][]any
	RowsRead    int64
	RowsWritten int64
}

// Raw returns the positional rows.
func (c *Cursor) Raw() [][]any {
	if c == nil {
		return [][]any{}
	}
	return c.Rows
}

// ToArray returns one map per row keyed by column name. When two columns
// share a name the later one wins.
func (c *Cursor) ToArray() []map[string]any {
	if c == nil {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(c.Rows))
	for _, row := range c.Rows {
		m := make(map[string]any, len(c.Columns))
		for i, col := range c.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
