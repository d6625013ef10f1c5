// Package log provides the logger used across storygraph.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level names accepted by SetLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Default is the logger behind the package-level helpers. Replace it to
// route logs elsewhere.
var Default Logger = zap.New(
	zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel,
	),
	zap.AddCaller(),
	zap.AddCallerSkip(1),
).Sugar()

// Logger is the subset of zap's SugaredLogger storygraph uses.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// SetLevel changes the level of the default logger. Unknown names select
// info.
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

// Level returns the current level name.
func Level() string {
	return zapLevel.Level().String()
}

// Debug logs at debug level through Default.
func Debug(args ...any) { Default.Debug(args...) }

// Debugf formats and logs at debug level through Default.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Info logs at info level through Default.
func Info(args ...any) { Default.Info(args...) }

// Infof formats and logs at info level through Default.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warn logs at warn level through Default.
func Warn(args ...any) { Default.Warn(args...) }

// Warnf formats and logs at warn level through Default.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Error logs at error level through Default.
func Error(args ...any) { Default.Error(args...) }

// Errorf formats and logs at error level through Default.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatalf formats and logs through Default, then exits the process.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
