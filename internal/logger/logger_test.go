package logger

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

// captureOutput redirects stdout to a buffer during f()
func captureOutput(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()

	return buf.String()
}

func testConfig(level, format, component string) *config.Config {
	cfg := &config.Config{}
	cfg.Log.Level = level
	cfg.Log.Format = format
	cfg.Log.Component = component
	return cfg
}

func TestLogger_TextFormat(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(testConfig("debug", "text", "test"))
		Info("hello buddy", "key", "value")
	})

	assert.Contains(t, out, "hello buddy")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "key=value")
}

func TestLogger_JSONFormat(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(testConfig("info", "json", "json_test"))
		Info("json log", "foo", "bar")
	})

	assert.Contains(t, out, `"msg":"json log"`)
	assert.Contains(t, out, `"component":"json_test"`)
	assert.Contains(t, out, `"foo":"bar"`)
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "error", Format: FormatText, Output: &buf})

	Info("should not appear")
	Error("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatText, Output: &buf})

	With("req_id", "123").Info("processing request")

	assert.Contains(t, buf.String(), "req_id=123")
}

func TestLogger_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	ctx := WithContext(context.Background(), With("user_id", 7))
	FromContext(ctx).Info("scoped")

	out := buf.String()
	assert.Contains(t, out, `"user_id":7`)
	assert.True(t, strings.Contains(out, `"msg":"scoped"`), out)

	// a bare context falls back to the global logger
	assert.Same(t, L(), FromContext(context.Background()))
}

func TestLogger_NilConfigKeepsDefaults(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: FormatText, Output: &buf})
	Init(nil)

	Info("still here")
	assert.Contains(t, buf.String(), "still here")
}
