package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents the logging level
type Level int

const (
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	TRACE: "TRACE",
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var zerologLevels = map[Level]zerolog.Level{
	TRACE: zerolog.TraceLevel,
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// String returns the upper-case level name.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Component represents the logging component
type Component string

const (
	ComponentApp        Component = "app"
	ComponentPipeline   Component = "pipeline"
	ComponentExtract    Component = "extract"
	ComponentCipher     Component = "cipher"
	ComponentClient     Component = "client"
	ComponentServer     Component = "server"
	ComponentDownloader Component = "downloader"
)

// Format represents the log output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatColor
)

const (
	componentField  = "component"
	timestampLayout = "2006-01-02 15:04:05"
	callerSkip      = 3 // ComponentLogger.Info -> ComponentLogger.log -> Logger.log
)

// Config holds logger configuration
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	Components map[Component]bool
	ShowCaller bool
	Timestamp  bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  INFO,
		Format: FormatText,
		Output: os.Stdout,
		Components: map[Component]bool{
			ComponentApp:        true,
			ComponentPipeline:   true,
			ComponentExtract:    false,
			ComponentCipher:     false,
			ComponentClient:     false,
			ComponentServer:     true,
			ComponentDownloader: false,
		},
		ShowCaller: false,
		Timestamp:  false,
	}
}

// Logger filters entries by level and component and renders them through zerolog.
type Logger struct {
	config *Config
	zl     zerolog.Logger
	mu     sync.RWMutex
}

// New creates a new logger instance
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Components == nil {
		config.Components = make(map[Component]bool)
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	l := &Logger{config: config}
	l.rebuild()
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(&Config{Level: ERROR + 1, Output: io.Discard})
}

// rebuild recreates the zerolog backend from the current config. Callers hold mu.
func (l *Logger) rebuild() {
	if l.config.Level <= TRACE {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	var w io.Writer = l.config.Output
	switch l.config.Format {
	case FormatText, FormatColor:
		cw := zerolog.ConsoleWriter{
			Out:        l.config.Output,
			NoColor:    l.config.Format == FormatText,
			TimeFormat: timestampLayout,
			FormatLevel: func(i interface{}) string {
				return "[" + strings.ToUpper(fmt.Sprint(i)) + "]"
			},
		}
		if !l.config.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		w = cw
	}

	ctx := zerolog.New(w).Level(zerolog.TraceLevel).With()
	if l.config.Timestamp {
		ctx = ctx.Timestamp()
	}
	l.zl = ctx.Logger()
}

// WithComponent creates a new logger instance for a specific component
func (l *Logger) WithComponent(component Component) *ComponentLogger {
	return &ComponentLogger{
		logger:    l,
		component: component,
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
	l.rebuild()
}

// SetFormat changes the log format
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Format = format
	l.rebuild()
}

// SetOutput changes the log output
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Output = w
	l.rebuild()
}

// EnableComponent enables logging for a specific component
func (l *Logger) EnableComponent(component Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Components[component] = true
}

// DisableComponent disables logging for a specific component
func (l *Logger) DisableComponent(component Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Components[component] = false
}

// Enabled reports whether an entry at level for component would be written.
func (l *Logger) Enabled(level Level, component Component) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.config.Level && l.config.Components[component]
}

// log writes a log entry
func (l *Logger) log(level Level, component Component, message string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.config.Level {
		return
	}
	if !l.config.Components[component] {
		return
	}

	zlevel, ok := zerologLevels[level]
	if !ok {
		zlevel = zerolog.NoLevel
	}
	ev := l.zl.WithLevel(zlevel).Str(componentField, string(component))
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	if l.config.ShowCaller {
		ev = ev.Caller(callerSkip)
	}
	ev.Msg(message)
}

// ComponentLogger provides component-specific logging
type ComponentLogger struct {
	logger    *Logger
	component Component
}

// Trace logs a trace message
func (cl *ComponentLogger) Trace(message string, fields ...map[string]interface{}) {
	cl.log(TRACE, message, fields...)
}

// Debug logs a debug message
func (cl *ComponentLogger) Debug(message string, fields ...map[string]interface{}) {
	cl.log(DEBUG, message, fields...)
}

// Info logs an info message
func (cl *ComponentLogger) Info(message string, fields ...map[string]interface{}) {
	cl.log(INFO, message, fields...)
}

// Warn logs a warning message
func (cl *ComponentLogger) Warn(message string, fields ...map[string]interface{}) {
	cl.log(WARN, message, fields...)
}

// Error logs an error message
func (cl *ComponentLogger) Error(message string, fields ...map[string]interface{}) {
	cl.log(ERROR, message, fields...)
}

// log merges field maps (later maps win) and forwards the entry.
func (cl *ComponentLogger) log(level Level, message string, fields ...map[string]interface{}) {
	var merged map[string]interface{}
	switch len(fields) {
	case 0:
	case 1:
		merged = fields[0]
	default:
		merged = make(map[string]interface{})
		for _, f := range fields {
			for k, v := range f {
				merged[k] = v
			}
		}
	}
	cl.logger.log(level, cl.component, message, merged)
}

// Global logger instance
var (
	globalLogger   = New(DefaultConfig())
	globalLoggerMu sync.RWMutex
)

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// WithComponent returns a component logger from global logger
func WithComponent(component Component) *ComponentLogger {
	return GetGlobalLogger().WithComponent(component)
}
