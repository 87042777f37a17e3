package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	buf.Reset()
	return m
}

func TestLogger_ComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentRecurring, JSON: true, Output: &buf})

	l.Info("run finished", FieldRunID, "r1")
	line := decodeLine(t, &buf)
	assert.Equal(t, ComponentRecurring, line[FieldComponent])
	assert.Equal(t, "r1", line[FieldRunID])

	sub := l.WithComponent(ComponentMirror)
	assert.Equal(t, ComponentMirror, sub.Component())
	sub.Warn("append failed")
	line = decodeLine(t, &buf)
	assert.Equal(t, ComponentRecurring, line[FieldComponent])
	assert.Equal(t, ComponentMirror, line[FieldSubcomponent])

	l.WithFields(NewFields().WithOperation(OpRunDaily).WithError(errors.New("boom"))).Error("failed")
	line = decodeLine(t, &buf)
	assert.Equal(t, OpRunDaily, line[FieldOperation])
	assert.Equal(t, "boom", line[FieldError])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.Equal(t, ComponentApp, l.Component())
}

func TestLogFields_ToSliceIsSorted(t *testing.T) {
	got := NewFields().WithRun("r", "2025-03-01", true).WithEntity("recurring", 4).ToSlice()
	assert.Equal(t, []any{
		FieldDate, "2025-03-01",
		FieldDryRun, true,
		FieldEntity, "recurring",
		FieldEntityID, int64(4),
		FieldRunID, "r",
	}, got)

	assert.Empty(t, NewFields().WithError(nil))
}

func TestFromContext(t *testing.T) {
	l := New(DefaultConfig())
	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}
