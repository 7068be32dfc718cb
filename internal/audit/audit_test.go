package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docxology/cellsql/internal/localdb"
)

func TestAppendAndList(t *testing.T) {
	cat, err := localdb.OpenCatalog(t.TempDir())
	require.NoError(t, err)
	defer cat.Close()

	Append(cat, "studio", "studio.query", "cell", "books", "")
	time.Sleep(2 * time.Millisecond)
	Append(cat, "api", "cell.drop", "cell", "books", "")

	evs, err := List(cat, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "cell.drop", evs[0].Action)
	assert.Equal(t, "studio.query", evs[1].Action)

	evs, err = List(cat, 1)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	// nil catalog is a no-op
	Append(nil, "x", "y", "z", "w", "")
	evs, err = List(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, evs)
}
