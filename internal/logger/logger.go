package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu    sync.Mutex
	level = LevelInfo

	loggers = map[int]*log.Logger{
		LevelDebug: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
		LevelInfo:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		LevelWarn:  log.New(os.Stdout, "[WARN] ", log.LstdFlags),
		LevelError: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
	}
)

// SetOutput redirects all log output to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// SetLevel sets the minimum level that gets logged
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(levelStr) {
	case "debug":
		level = LevelDebug
	case "info":
		level = LevelInfo
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	default:
		level = LevelInfo
	}
}

func emit(lvl int, format string, v ...interface{}) {
	if level > lvl {
		return
	}
	loggers[lvl].Output(3, fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	emit(LevelDebug, format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	emit(LevelInfo, format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	emit(LevelWarn, format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	emit(LevelError, format, v...)
}
