package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ILogger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warning(msg string, fields ...Field)
	With(fields ...Field) ILogger
}

type logger struct {
	zap *zap.Logger
}

func (l logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, fields...)
}

func (l logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, fields...)
}

func (l logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, fields...)
}

func (l logger) Warning(msg string, fields ...Field) {
	l.zap.Warn(msg, fields...)
}

func (l logger) With(fields ...Field) ILogger {
	return logger{zap: l.zap.With(fields...)}
}

func New(namespace, level string) ILogger {
	return logger{
		zap: newZapLogger(namespace, level),
	}
}

// NewNop discards everything; used by tests.
func NewNop() ILogger {
	return logger{zap: zap.NewNop()}
}

func newZapLogger(namespace, level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.InitialFields = map[string]interface{}{
		"namespace": namespace,
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
