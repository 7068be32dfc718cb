package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))
	t.Cleanup(func() { _ = Setup("info", "text", os.Stderr) })

	WithCell("alpha").WithField("sql", "SELECT 1").Debug("statement")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "alpha", line["cell"])
	require.Equal(t, "SELECT 1", line["sql"])
	require.Equal(t, "statement", line["msg"])
	require.Equal(t, logrus.DebugLevel, Log.GetLevel())
}

func TestSetupRejectsUnknown(t *testing.T) {
	require.Error(t, Setup("loud", "text", nil))
	require.Error(t, Setup("info", "xml", nil))
}
