// Package logger is the structured logger of the ninja dashboard.
// It wraps zap behind a small field-based API so callers never import zap.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levels = [...]struct {
	name string
	zap  zapcore.Level
}{
	LevelDebug: {"DEBUG", zapcore.DebugLevel},
	LevelInfo:  {"INFO", zapcore.InfoLevel},
	LevelWarn:  {"WARN", zapcore.WarnLevel},
	LevelError: {"ERROR", zapcore.ErrorLevel},
	LevelFatal: {"FATAL", zapcore.FatalLevel},
}

func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l Level) zapLevel() zapcore.Level {
	if l < LevelDebug || l > LevelFatal {
		return zapcore.InfoLevel
	}
	return levels[l].zap
}

// ParseLevel accepts any case and "warning". Unknown values give LevelInfo.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn
	}
	for l := range levels {
		if levels[l].name == name {
			return Level(l)
		}
	}
	return LevelInfo
}

// Format selects the encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures New.
type Options struct {
	Output io.Writer // stdout when nil
	Level  Level
	Format Format

	AddCaller bool
	// CallerSkip adds frames on top of the wrapper's own.
	CallerSkip int
}

// DefaultOptions: JSON at info level to stdout, with callers.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     LevelInfo,
		Format:    FormatJSON,
		AddCaller: true,
	}
}

// Logger writes structured entries. Loggers derived with With share the
// level of their parent.
type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	enc := zapcore.NewJSONEncoder(encCfg)
	if opts.Format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(opts.Output)), level)

	var zopts []zap.Option
	if opts.AddCaller {
		zopts = append(zopts, zap.AddCaller(), zap.AddCallerSkip(1+opts.CallerSkip))
	}
	return &Logger{zl: zap.New(core, zopts...), level: level}
}

// NewFromCore wraps a zap core, e.g. zaptest/observer in tests.
func NewFromCore(core zapcore.Core) *Logger {
	return &Logger{zl: zap.New(core), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func Default() *Logger { return New(DefaultOptions()) }

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zap.NewNop(), level: zap.NewAtomicLevel()}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zl: l.zl.With(fields...), level: l.level}
}

// SetLevel changes the level of l, its parent and everything derived from them.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Sync() error { return l.zl.Sync() }

func (l *Logger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zl.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zl.Error(msg, fields...) }

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...Field) { l.zl.Fatal(msg, fields...) }

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Default when there is none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// RequestIDKey is the field name of the request ID.
const RequestIDKey = "request_id"

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

type Field = zap.Field

func String(key, value string) Field  { return zap.String(key, value) }
func Int(key string, value int) Field { return zap.Int(key, value) }
func Any(key string, value any) Field { return zap.Any(key, value) }

// Duration is written as a string such as "1.5s".
func Duration(key string, value time.Duration) Field {
	return zap.String(key, value.String())
}

// Err is skipped for a nil error.
func Err(err error) Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", err.Error())
}

// Dashboard fields.
func Component(name string) Field   { return String("component", name) }
func NinjaID(id string) Field       { return String("ninja_id", id) }
func EntryID(id string) Field       { return String("entry_id", id) }
func Path(p string) Field           { return String("path", p) }
func Belt(b string) Field           { return String("belt", b) }
func CurriculumLevel(n int) Field   { return Int("level", n) }
func Lesson(n int) Field            { return Int("lesson", n) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
