package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, format string, level LogLevel, components map[string]LogLevel) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	Configure(format, level, components)
	SetOutput(&buf)
	t.Cleanup(func() {
		Configure("text", LogLevelInfo, nil)
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestTextHandlerFormat(t *testing.T) {
	buf := capture(t, "text", LogLevelInfo, nil)

	Get(Binder).Info("Request settled", "outcome", "bound", "handle", 42)

	line := buf.String()
	assert.Contains(t, line, "[binder] INFO Request settled")
	assert.True(t, strings.HasSuffix(line, "handle=42 outcome=bound\n"), line)
}

func TestComponentLevels(t *testing.T) {
	buf := capture(t, "text", LogLevelWarn, map[string]LogLevel{
		"platform": LogLevelDebug,
	})

	Get(Binder).Info("hidden")
	Get(PlatformNetlink).Debug("inherited from platform")
	Get(PlatformSim).Debug("also inherited")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "inherited from platform")
	assert.Contains(t, out, "also inherited")

	SetComponentLevel(PlatformSim, LogLevelError)
	buf.Reset()
	Get(PlatformSim).Debug("now filtered")
	assert.Empty(t, buf.String())

	assert.Equal(t, LogLevelError, GetComponentLevels()[PlatformSim])
	ClearComponentLevel(PlatformSim)
	assert.NotContains(t, GetComponentLevels(), PlatformSim)
	assert.Equal(t, LogLevelWarn, GetDefaultLevel())
}

func TestJSONHandler(t *testing.T) {
	buf := capture(t, "json", LogLevelDebug, nil)

	Get(API).Debug("Bind request", "ssid", "lab")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "nb.api", rec["component"])
	assert.Equal(t, "lab", rec["ssid"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestWithRequest(t *testing.T) {
	buf := capture(t, "text", LogLevelInfo, nil)

	l := WithRequest(Get(Binder), RequestAttrs{
		RequestID:  "abc",
		Identifier: "office",
		Handle:     7,
	})
	l.Info("Requesting network")

	out := buf.String()
	assert.Contains(t, out, "request_id=abc")
	assert.Contains(t, out, "ssid=office")
	assert.Contains(t, out, "handle=7")
	assert.NotContains(t, out, "interface=")
}

func TestGetCachesLoggers(t *testing.T) {
	capture(t, "text", LogLevelInfo, nil)
	assert.Same(t, Get(Events), Get(Events))
}
