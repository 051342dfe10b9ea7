package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("debug"))
	assert.Equal(t, WARNING, ParseLogLevel("WARN"))
	assert.Equal(t, ERROR, ParseLogLevel(" error "))
	assert.Equal(t, INFO, ParseLogLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(WARNING, &buf)

	Info("hidden %d", 1)
	Warning("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARNING] shown 2")
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	Init(DEBUG, &buf)

	Named("gsn").Debug("token refreshed")
	assert.Contains(t, buf.String(), "[DEBUG] gsn: token refreshed")

	buf.Reset()
	SetLevel(ERROR)
	Named("gsn").Info("ignored")
	assert.Empty(t, buf.String())
	assert.False(t, IsDebugEnabled())
}
