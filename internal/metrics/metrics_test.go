package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStatement(t *testing.T) {
	ObserveStatement("m-test", time.Millisecond, nil)
	ObserveStatement("m-test", time.Millisecond, errors.New("x"))
	ObserveStatement("m-test", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(statements.WithLabelValues("m-test", OK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(statements.WithLabelValues("m-test", Error)))
}

func TestOpenCellsGauge(t *testing.T) {
	before := testutil.ToFloat64(openCells)
	CellOpened()
	CellOpened()
	CellClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(openCells))
	CellClosed()
}

func TestHandlerExposes(t *testing.T) {
	IncStudio("query", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cellsql_studio_commands_total"))
}
