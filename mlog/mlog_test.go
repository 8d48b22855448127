package mlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoWritesKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetOutput(&buf)
	l.Info("bucket flushed", "idx", 7, "bytes", 128)

	line := buf.String()
	assert.True(t, strings.Contains(line, "bucket flushed"))
	assert.True(t, strings.Contains(line, "idx=7"))
	assert.True(t, strings.Contains(line, "bytes=128"))
	assert.True(t, strings.Contains(line, "[INFO]"))
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetOutput(&buf)
	l.Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestSetLevelEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New("test")
	l.SetOutput(&buf)
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	assert.True(t, strings.Contains(buf.String(), "now visible"))
}
