package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	mu    sync.RWMutex
	base  *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	base = build("development")
}

// Init configures the process-wide logger. Development env writes coloured
// console lines, anything else writes JSON.
func Init(lvl LogLevel, env string) {
	SetLevel(lvl)

	mu.Lock()
	defer mu.Unlock()
	base = build(env)
}

// SetLevel changes the level of every Log, including ones already handed out.
func SetLevel(lvl LogLevel) {
	level.SetLevel(toZap(lvl))
}

func build(env string) *zap.SugaredLogger {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

func toZap(lvl LogLevel) zapcore.Level {
	switch LogLevel(strings.ToLower(string(lvl))) {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type Log struct {
	s   *zap.SugaredLogger
	err error
}

func New() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return &Log{s: base}
}

func (l *Log) WithError(err error) *Log {
	return &Log{s: l.s, err: err}
}

// With returns a child logger carrying a structured field.
func (l *Log) With(key string, value interface{}) *Log {
	return &Log{s: l.s.With(key, value), err: l.err}
}

func (l *Log) fields() []interface{} {
	if l.err != nil {
		return []interface{}{"error", l.err}
	}
	return nil
}

func (l *Log) Debug(msg string) {
	l.s.Debugw(msg, l.fields()...)
}

func (l *Log) Info(msg string) {
	l.s.Infow(msg, l.fields()...)
}

func (l *Log) Warn(msg string) {
	l.s.Warnw(msg, l.fields()...)
}

func (l *Log) Error(msg string) {
	l.s.Errorw(msg, l.fields()...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
