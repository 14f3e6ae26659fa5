package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func disabledLogsConfig() LogsConfig {
	return LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "manufacturing-service",
		Insecure:          true,
	}
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewLoggerProvider(ctx, disabledLogsConfig(), zap.NewNop())

	require.NoError(t, err)
	assert.False(t, provider.IsEnabled())
	assert.NoError(t, provider.ForceFlush(ctx))
	assert.NoError(t, provider.Shutdown(ctx))
	assert.NoError(t, provider.Shutdown(ctx), "second shutdown stays a no-op")
}

func TestLoggerProvider_GetConfig(t *testing.T) {
	cfg := disabledLogsConfig()

	provider, err := NewLoggerProvider(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	got := provider.GetConfig()
	assert.Equal(t, "manufacturing-service", got.ServiceName)
	assert.Equal(t, cfg.CollectorEndpoint, got.CollectorEndpoint)
	assert.True(t, got.Insecure)
}

func TestNewLoggerProvider_EnabledWithoutCollector(t *testing.T) {
	ctx := context.Background()
	cfg := LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999", // nothing listens here
		ServiceName:       "manufacturing-service",
		Insecure:          true,
	}

	// The OTLP exporter buffers until a collector shows up, so construction
	// must succeed without one
	provider, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, provider.IsEnabled())
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestNewZapOTELCore_NopWithoutProvider(t *testing.T) {
	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName: "manufacturing-service",
		Level:       zapcore.InfoLevel,
	})

	require.NotNil(t, core)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewZapOTELCore_DisabledProvider(t *testing.T) {
	provider, err := NewLoggerProvider(context.Background(), disabledLogsConfig(), zap.NewNop())
	require.NoError(t, err)

	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "manufacturing-service",
		LoggerProvider: provider,
		Level:          zapcore.InfoLevel,
	})

	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewBridgedLogger_TeesToBothCores(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	otelCore, otelLogs := observer.New(zapcore.DebugLevel)

	logger := NewBridgedLogger(baseCore, otelCore)
	logger.Info("process started", zap.String("process_number", "MP-2026-001"))

	require.Equal(t, 1, baseLogs.Len())
	require.Equal(t, 1, otelLogs.Len())
	assert.Equal(t, "process started", baseLogs.All()[0].Message)
	assert.Equal(t, "MP-2026-001", otelLogs.All()[0].ContextMap()["process_number"])
}

func TestLevelFilterCore(t *testing.T) {
	inner, recorded := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	logger := zap.New(core)
	logger.Debug("ignored")
	logger.Info("also ignored")
	logger.Warn("kept")
	logger.Error("kept too")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "kept", recorded.All()[0].Message)
}

func TestLevelFilterCore_With(t *testing.T) {
	inner, recorded := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	child := core.With([]zapcore.Field{zap.String("tenant_id", "t-1")})
	filtered, ok := child.(*levelFilterCore)
	require.True(t, ok, "With must preserve the level filter")
	assert.Equal(t, zapcore.WarnLevel, filtered.minLevel)

	zap.New(child).Warn("line scrapped")
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "t-1", recorded.All()[0].ContextMap()["tenant_id"])
}
