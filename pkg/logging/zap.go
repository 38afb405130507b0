package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger configuration
type Config struct {
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// Path is the log file; empty logs to Writer
	Path string
	// MaxSizeMB is the size in megabytes before the file is rotated
	MaxSizeMB int
	// MaxBackups is the maximum number of rotated files to keep
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int
	// Writer receives output when Path is empty, stderr by default
	Writer io.Writer
}

// ZapLogger implements Logger on top of zap
type ZapLogger struct {
	zl     *zap.Logger
	closer io.Closer
}

// NewZapLogger creates a logger writing to a rotating file or to a writer
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case FormatText:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON, "":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	var (
		sink   zapcore.WriteSyncer
		closer io.Closer
	)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		sink = zapcore.AddSync(lj)
		closer = lj
	} else {
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		sink = zapcore.Lock(zapcore.AddSync(w))
	}

	core := zapcore.NewCore(encoder, sink, zapLevel(cfg.Level))
	return &ZapLogger{zl: zap.New(core), closer: closer}, nil
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapFields converts Fields in key order so output is stable
func zapFields(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Debug logs a debug message
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.zl.Debug(msg, zapFields(fields)...)
}

// Info logs an info message
func (l *ZapLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.zl.Info(msg, zapFields(fields)...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.zl.Warn(msg, zapFields(fields)...)
}

// Error logs an error message
func (l *ZapLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	zf := zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Error(msg, zf...)
}

// WithFields returns a logger with additional fields
func (l *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{zl: l.zl.With(zapFields(fields)...), closer: l.closer}
}

// Close flushes buffered entries and closes the log file
func (l *ZapLogger) Close() error {
	_ = l.zl.Sync() // stderr does not support fsync on every platform
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
