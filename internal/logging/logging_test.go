package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Options{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("roster generated", zap.String("roster_id", "ROSTER-001"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "roster generated", entry["msg"])
	assert.Equal(t, "ROSTER-001", entry["roster_id"])
	assert.Equal(t, "garde", entry["service"])
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = NewWithWriter(Options{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
