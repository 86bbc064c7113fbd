package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init()
	assert.NotNil(t, log)
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	log = New(NewJSONHandler(&buf, nil))

	Info("test message", "student_id", 7)

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "student_id")
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	log = New(NewJSONHandler(&buf, nil))

	Error("test error")

	assert.Contains(t, buf.String(), "test error")
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	log = New(NewJSONHandler(&buf, opts))

	Debug("test debug")

	assert.Contains(t, buf.String(), "test debug")
}

func TestInfof(t *testing.T) {
	var buf bytes.Buffer
	log = New(NewJSONHandler(&buf, nil))

	Infof("reconciled student %d", 42)

	assert.Contains(t, buf.String(), "reconciled student 42")
}

func TestErrorf(t *testing.T) {
	var buf bytes.Buffer
	log = New(NewJSONHandler(&buf, nil))

	Errorf("failed for %s", "MYR")

	assert.Contains(t, buf.String(), "failed for MYR")
}
