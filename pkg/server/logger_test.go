package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogHandler(t *testing.T) {
	store := newMemStore()
	jobID := uuid.New()
	logger := slog.New(NewDBLogHandler(store, jobID)).With("kind", "report")

	logger.Debug("dropped")
	logger.WithGroup("unit").Warn("section failed", "entity", "Pricing", "error", errors.New("timeout"))

	logs, err := store.GetJobLogs(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Equal(t, "section failed", logs[0].Message)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, map[string]any{
		"kind":        "report",
		"unit.entity": "Pricing",
		"unit.error":  "timeout",
	}, meta)
}

func TestTeeHandler(t *testing.T) {
	first, second := newMemStore(), newMemStore()
	jobID := uuid.New()
	debug := NewDBLogHandler(second, jobID)
	debug.Level = slog.LevelDebug

	logger := slog.New(newTeeHandler(NewDBLogHandler(first, jobID), debug))
	logger.Debug("details")
	logger.Info("progress")

	a, _ := first.GetJobLogs(context.Background(), jobID)
	b, _ := second.GetJobLogs(context.Background(), jobID)
	assert.Len(t, a, 1)
	assert.Len(t, b, 2)
}
