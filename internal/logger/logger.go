package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the different logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes levelled lines, optionally tagged with a component name
type Logger struct {
	component string
	core      *core
}

type core struct {
	mu    sync.RWMutex
	level LogLevel
	out   *log.Logger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// Init initializes the global logger with the specified level and output
func Init(level LogLevel, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = &Logger{
		core: &core{
			level: level,
			out:   log.New(output, "", log.LstdFlags),
		},
	}
}

// ParseLogLevel parses a string log level and returns the corresponding LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalMu.Lock()
	l := globalLogger
	globalMu.Unlock()
	if l == nil {
		Init(INFO, os.Stdout)
		return GetLogger()
	}
	return l
}

// Named returns a logger that prefixes every line with the component name.
// It shares level and output with the global logger.
func Named(component string) *Logger {
	return &Logger{component: component, core: GetLogger().core}
}

// SetLevel changes the log level of the global logger
func SetLevel(level LogLevel) {
	c := GetLogger().core
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	return GetLogger().level()
}

// SetOutput changes the output destination
func SetOutput(output io.Writer) {
	GetLogger().core.out.SetOutput(output)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= DEBUG
}

func (l *Logger) level() LogLevel {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return l.core.level
}

func (l *Logger) logf(level LogLevel, format string, v ...interface{}) {
	if l.level() > level {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		l.core.out.Printf("[%s] %s: %s", level, l.component, msg)
		return
	}
	l.core.out.Printf("[%s] %s", level, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.logf(DEBUG, format, v...) }

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) { l.logf(INFO, format, v...) }

// Warning logs a warning message
func (l *Logger) Warning(format string, v ...interface{}) { l.logf(WARNING, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.logf(ERROR, format, v...) }

// Fatal logs an error message and exits the program
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.logf(ERROR, format, v...)
	os.Exit(1)
}

// Global convenience functions
func Debug(format string, v ...interface{}) {
	GetLogger().Debug(format, v...)
}

func Info(format string, v ...interface{}) {
	GetLogger().Info(format, v...)
}

func Warning(format string, v ...interface{}) {
	GetLogger().Warning(format, v...)
}

func Error(format string, v ...interface{}) {
	GetLogger().Error(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GetLogger().Fatal(format, v...)
}
