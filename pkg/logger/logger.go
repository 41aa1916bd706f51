package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with typed fields. Warn and Error entries are also
// handed to a LogCollector when one is attached.
type Logger struct {
	zl   zerolog.Logger
	sink *collectorRef
}

// collectorRef is shared by a logger and every child derived from it, so a
// collector attached after startup reaches all of them.
type collectorRef struct {
	mu sync.RWMutex
	c  *LogCollector
}

func (r *collectorRef) get() *LogCollector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.c
}

func (r *collectorRef) swap(c *LogCollector) {
	r.mu.Lock()
	prev := r.c
	r.c = c
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string // defaults to RFC3339Nano
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	// skip: zerolog internals, emit, the level method
	zl := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(4).Logger()
	return &Logger{zl: zl, sink: &collectorRef{}}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), sink: &collectorRef{}}
}

// NewWithWriter builds a JSON logger on w. An unknown level means info.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger(), sink: &collectorRef{}}
}

// With returns a child tagged with component. The collector stays shared.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger(), sink: l.sink}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

// collect must be called straight from a level method so the caller
// frame lands on user code.
func (l *Logger) collect(level, msg string, fields []Field) {
	c := l.sink.get()
	if c == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		values[f.Key] = f.value()
	}
	c.AddLog(level, msg, values, caller)
}

// AddCollector attaches a collector to this logger and every logger
// derived from it. A previous collector is flushed and closed.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	l.sink.swap(NewLogCollector(cfg))
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	l.sink.swap(nil)
}
