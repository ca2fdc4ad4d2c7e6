package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "info")
	log.Debug("hidden")
	log.Info("batch created", "batch_id", "b1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "batch created", line["msg"])
	assert.Equal(t, "b1", line["batch_id"])
	assert.Equal(t, "attendboard", line["service"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
