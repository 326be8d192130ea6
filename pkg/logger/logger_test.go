package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAttrsAreAdded(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("request_id", "req-1"))
	ctx = AppendCtx(ctx, slog.String("user_id", "u-1"))
	log.InfoContext(ctx, "enrollment created")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "u-1", record["user_id"])
	assert.Equal(t, "enrollment created", record["msg"])
}

func TestMultiLevelHandlerRespectsChildLevels(t *testing.T) {
	var all, errorsOnly bytes.Buffer
	handler := NewMultiLevelHandler(slog.LevelDebug,
		slog.NewJSONHandler(&all, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorsOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(handler)

	log.Info("upload stored")
	log.Error("compensation failed")

	assert.Contains(t, all.String(), "upload stored")
	assert.Contains(t, all.String(), "compensation failed")
	assert.NotContains(t, errorsOnly.String(), "upload stored")
	assert.Contains(t, errorsOnly.String(), "compensation failed")
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level.Level())

	_, err = parseLevel("loud")
	assert.Error(t, err)
}
