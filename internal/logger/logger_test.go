package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestInvariantLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "error", "json")
	defer Initialize("info", "text")

	Invariant("copies_within_total", errors.New("over-return"), "item_id", int64(7))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"invariant":"copies_within_total"`)
	assert.Contains(t, out, `"item_id":7`)
}

func TestDatabaseResultSuccessIsDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "text")
	defer Initialize("info", "text")

	DatabaseResult("reserve_copy", 1, nil)
	assert.Empty(t, buf.String())

	DatabaseResult("reserve_copy", 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "Database call failed")
}
