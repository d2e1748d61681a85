package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("TRACE")
	require.NoError(t, err)
	assert.Equal(t, LevelTrace, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestModuleFiltering(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, InitLoggerTo(&buf, "trace", true))

	DisableModule(SimMonitoring)
	Debug(SimMonitoring, "hidden")
	assert.Zero(t, buf.Len())

	EnableModule(SimMonitoring)
	defer DisableModule(SimMonitoring)
	Debug(SimMonitoring, "shown", "slot", 3)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, SimMonitoring, rec["module"])

	buf.Reset()
	Info(ReaderMonitoring, "always")
	assert.Contains(t, buf.String(), "always")
}

func TestWithAddsContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: LevelTrace, AddSource: true})).With("unit", "0xf1")
	l.Warn(RPCMonitoring, "dropped")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "0xf1", rec["unit"])
	assert.Equal(t, RPCMonitoring, rec["module"])
	source, ok := rec["source"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, source["file"], "log_test.go")
}
