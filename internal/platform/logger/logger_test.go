package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production")

	log.Debug("hidden")
	log.Info("consent recorded", "mask", "1110")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "one JSON line, debug suppressed")
	assert.Equal(t, "consent recorded", entry["msg"])
	assert.Equal(t, "1110", entry["mask"])
	assert.Equal(t, "optin", entry["service"])
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFor("development"))
	assert.Equal(t, slog.LevelDebug, levelFor("LOCAL"))
	assert.Equal(t, slog.LevelInfo, levelFor("production"))
	assert.Equal(t, slog.LevelInfo, levelFor(""))
}
