package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stratbook/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"}, &buf)

	log.Info("cycle started")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "cycle started", entry["message"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "stratbook", entry[FieldService])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriterFiltersLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "warn", LogFormat: "json"}, &buf)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)

	log.Info("human readable")

	assert.True(t, strings.Contains(buf.String(), "human readable"))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf))

	log.WithFields(map[string]interface{}{
		"ticker":   "AAPL",
		"strategy": 1,
		"delta":    -40,
	}).Info("order placed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "AAPL", entry["ticker"])
	assert.Equal(t, float64(1), entry["strategy"])
	assert.Equal(t, float64(-40), entry["delta"])
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf))

	log.WithField("run_id", "abc").Warnf("strategy %d failed", 2)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, "strategy 2 failed", entry["message"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf))

	log.WithError(errors.New("gateway unavailable")).Error("connect failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "gateway unavailable", entry["error"])
	assert.Equal(t, "connect failed", entry["message"])
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("discarded")
	log.WithField("k", "v").Errorf("also %s", "discarded")
}

func TestComponentAndStrategyFields(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).Component("combiner")

	log.WithStrategy(0).Warn("input unavailable")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "combiner", entry[FieldComponent])
	assert.Equal(t, float64(1), entry[FieldStrategy])
}

func TestForCarriesRunID(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		runID interface{}
	}{
		{"tagged context", ContextWithRunID(context.Background(), "run-1"), "run-1"},
		{"plain context", context.Background(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			FromZerolog(zerolog.New(&buf)).For(tt.ctx).Info("fill applied")

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.runID, entry[FieldRunID])
		})
	}
}
