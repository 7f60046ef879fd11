package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewTestLogger(&buf)

	log.V(TRACE).Info("sample taken", "depth", 30)
	log.V(TRACE+1).Info("too verbose")

	out := buf.String()
	assert.Contains(t, out, "sample taken")
	assert.Contains(t, out, `"depth": 30`)
	assert.NotContains(t, out, "too verbose")
}

func TestNewLoggerNilOptions(t *testing.T) {
	log := NewLogger(nil)
	assert.True(t, log.Enabled())
}
