package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "json", "warn")
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", "provider", "nws")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "nws", line["provider"])
	assert.Equal(t, "climate-sources", line["service"])
	assert.Contains(t, line, "time")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "text", "debug")
	require.NoError(t, err)

	l.Debug("cache miss", "key", "climate:v1:x")
	assert.Contains(t, buf.String(), "msg=\"cache miss\"")
	assert.Contains(t, buf.String(), "key=climate:v1:x")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "json", "loud")
	assert.Error(t, err)
}
