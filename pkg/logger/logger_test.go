package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/pkg/logger"
)

func TestNewWithOptions_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{Env: "production"}, &buf)

	log.Debug("hidden")
	log.Info("posted", "journal_entry_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "posted", line["msg"])
	assert.Equal(t, "abc", line["journal_entry_id"])
	assert.Regexp(t, `^logger_test\.go:\d+$`, line["source"])
}

func TestNewWithOptions_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{Env: "development", Level: "warn"}, &buf)

	log.Info("quiet")
	assert.Empty(t, buf.String())

	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestWithContext_AddsRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{Format: "json"}, &buf)

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, logger.UserIDKey, "user-7")

	log.WithContext(ctx).WithError(errors.New("boom")).Info("x")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "user-7", line["user_id"])
	assert.Equal(t, "boom", line["error"])
}
