package logger

import (
	"io"
	"os"
	"strings"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Logger is the leveled key/value logger shared by every package.
// Fields alternate string keys and values; a trailing key without a value
// and pairs with a non-string key are skipped.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	// Fatal logs and terminates the process.
	Fatal(msg string, fields ...interface{})
}

type eventLogger struct {
	zl zerolog.Logger
}

func (l eventLogger) Debug(msg string, fields ...interface{}) { send(l.zl.Debug(), msg, fields) }
func (l eventLogger) Info(msg string, fields ...interface{})  { send(l.zl.Info(), msg, fields) }
func (l eventLogger) Warn(msg string, fields ...interface{})  { send(l.zl.Warn(), msg, fields) }
func (l eventLogger) Error(msg string, fields ...interface{}) { send(l.zl.Error(), msg, fields) }
func (l eventLogger) Fatal(msg string, fields ...interface{}) { send(l.zl.Fatal(), msg, fields) }

// send is a no-op on the nil event zerolog hands out for filtered levels.
func send(ev *zerolog.Event, msg string, fields []interface{}) {
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

// NewLogger builds the process logger. Console output goes to stderr so
// response bodies printed on stdout stay pipeable.
func NewLogger(cfg *config.LogConfig, outputMode string) Logger {
	return newLogger(cfg, outputMode, os.Stderr)
}

func newLogger(cfg *config.LogConfig, outputMode string, out io.Writer) Logger {
	sinks := []io.Writer{consoleSink(out, outputMode)}
	if cfg.FileLogging.Enable {
		sinks = append(sinks, fileSink(cfg.FileLogging))
	}

	zl := zerolog.New(io.MultiWriter(sinks...)).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().
		Logger()
	return eventLogger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// consoleSink writes JSON lines in json mode and a human layout otherwise.
func consoleSink(out io.Writer, outputMode string) io.Writer {
	if strings.EqualFold(outputMode, "json") {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
}

// fileSink is a size-rotated file that always receives JSON lines.
func fileSink(cfg config.FileLogConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return eventLogger{zl: zerolog.Nop()}
}
