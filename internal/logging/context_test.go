package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", AccountID(ctx))
	assert.Equal(t, "", Tool(ctx))

	// Set values.
	ctx = WithAccountID(ctx, "spot_main")
	ctx = WithTool(ctx, "binance.get_balance")

	// Round-trip.
	assert.Equal(t, "spot_main", AccountID(ctx))
	assert.Equal(t, "binance.get_balance", Tool(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithTool(WithAccountID(context.Background(), "fut_1"), "binance.get_positions")
	logger.InfoContext(ctx, "resolved")

	out := buf.String()
	assert.Contains(t, out, "account_id=fut_1")
	assert.Contains(t, out, "tool=binance.get_positions")
}

func TestCorrelationHandler_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "no ids")

	out := buf.String()
	assert.NotContains(t, out, "account_id")
	assert.NotContains(t, out, "tool=")
}

func TestCorrelationHandler_WithAttrsPreservesWrapping(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner)).With(slog.String("component", "vault"))

	ctx := WithAccountID(context.Background(), "spot_main")
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	assert.Contains(t, out, "component=vault")
	assert.Contains(t, out, "account_id=spot_main")
}
