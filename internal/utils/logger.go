package utils

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var loggerMu sync.RWMutex
var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// InitLogger configures the process logger. With a file it logs JSON through
// lumberjack rotation; without one it logs to stderr via the console writer.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if file != "" {
		l = zerolog.New(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		}).With().Timestamp().Logger().Level(lvl)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(lvl)
	}

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// SetLogLevel changes the minimum level of the active logger.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	loggerMu.Lock()
	logger = logger.Level(lvl)
	loggerMu.Unlock()
}

// SetLoggerForTest swaps the package logger so tests can capture output.
func SetLoggerForTest(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func emit(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func current() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, kv ...interface{}) {
	l := current()
	emit(l.Debug(), msg, kv)
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...interface{}) {
	l := current()
	emit(l.Info(), msg, kv)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...interface{}) {
	l := current()
	emit(l.Warn(), msg, kv)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, kv ...interface{}) {
	l := current()
	emit(l.Error(), msg, kv)
}
