package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/IqDevHose/grandm-qrcode/internal/platform/requestctx"
)

// NewLogger builds the service's JSON logger. Unknown or empty level names mean info.
func NewLogger(levelName string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(levelName))
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			TimeKey:        "timestamp",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// WithLogger stores logger on ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext returns the request logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// SessionLogger returns the request logger scoped to a browsing session. The session id comes
// from the context unless one is given.
func SessionLogger(ctx context.Context, sessionID string) *zap.Logger {
	if sessionID == "" {
		sessionID = requestctx.SessionID(ctx)
	}
	logger := FromContext(ctx)
	if id := SanitizeSessionID(sessionID); id != "" {
		logger = logger.With(zap.String("session_id", id))
	}
	return logger
}
