package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"benchhub/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger
var sugar *zap.SugaredLogger

func init() {
	// Development logger until Init runs with real configuration
	defaultConfig := zap.NewDevelopmentConfig()
	defaultConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	defaultConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	defaultLogger, _ := defaultConfig.Build(zap.AddCallerSkip(1))
	Log = defaultLogger
	sugar = defaultLogger.Sugar()
}

// Init initializes logger from global configuration
func Init() error {
	cfg := config.GlobalConfig.Logger

	atomicLevel := zap.NewAtomicLevel()
	switch cfg.Level {
	case "debug":
		atomicLevel.SetLevel(zapcore.DebugLevel)
	case "info":
		atomicLevel.SetLevel(zapcore.InfoLevel)
	case "warn":
		atomicLevel.SetLevel(zapcore.WarnLevel)
	case "error":
		atomicLevel.SetLevel(zapcore.ErrorLevel)
	default:
		atomicLevel.SetLevel(zapcore.InfoLevel)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var syncer zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		file, err := openLogFile(cfg.File.Path)
		if err != nil {
			return err
		}
		syncer = zapcore.AddSync(file)
	case "both":
		file, err := openLogFile(cfg.File.Path)
		if err != nil {
			return err
		}
		syncer = zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(os.Stdout),
			zapcore.AddSync(file),
		)
	default: // console
		syncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		syncer,
		atomicLevel,
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = Log.Sugar()

	return nil
}

func openLogFile(path string) (*os.File, error) {
	if idx := strings.LastIndex(path, "/"); idx > 0 {
		if err := os.MkdirAll(path[:idx], 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}
	return file, nil
}

// Debug level
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Info level
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

// Warn level
func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Error level
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

// Fatal level
func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// Debugf formats Debug log
func Debugf(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

// Infof formats Info log
func Infof(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

// Warnf formats Warn log
func Warnf(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

// Errorf formats Error log
func Errorf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

// Fatalf formats Fatal log
func Fatalf(format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}

// Ctx variants keep call sites uniform; request-scoped fields may be added
// here once tracing exists.

func DebugCtx(ctx context.Context, format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

func InfoCtx(ctx context.Context, format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

func WarnCtx(ctx context.Context, format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

func ErrorCtx(ctx context.Context, format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

func FatalCtx(ctx context.Context, format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}

// Sync flushes any buffered log entries
func Sync() error {
	return Log.Sync()
}
