package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel(" WARN "))
	assert.Equal(t, LogLevelDebug, ParseLogLevel("Debug"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("loud"))
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelWarn)
	logger.SetOutput(&buf)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN] shown 2")
}

func TestDerivedLoggerSharesLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(LogLevelError)
	parent.SetOutput(&buf)
	child := parent.With("power")

	child.Debug("before")
	parent.SetLevel(LogLevelDebug)
	child.Debug("after %s", "raise")

	assert.Equal(t, LogLevelDebug, child.GetLevel())
	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "[DEBUG] [power] after raise")
}
