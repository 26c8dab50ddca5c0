package logctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRoundTrip(t *testing.T) {
	logger := slog.Default().With("component", "test")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}

func TestLoggerFromEmptyContext(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))
}
