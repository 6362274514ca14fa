package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by EnvironmentConfig.
const (
	EnvLevel      = "KWIKDL_LOG_LEVEL"
	EnvFormat     = "KWIKDL_LOG_FORMAT"
	EnvOutput     = "KWIKDL_LOG_OUTPUT"
	EnvCaller     = "KWIKDL_LOG_CALLER"
	EnvTimestamp  = "KWIKDL_LOG_TIMESTAMP"
	EnvComponents = "KWIKDL_LOG_COMPONENTS"
)

// LogConfig represents the textual logging configuration as read from the environment or flags.
type LogConfig struct {
	Level      string          `json:"level"`
	Format     string          `json:"format"`
	Output     string          `json:"output"`
	Components map[string]bool `json:"components"`
	ShowCaller bool            `json:"show_caller"`
	Timestamp  bool            `json:"timestamp"`
}

// DefaultLogConfig returns default logging configuration
func DefaultLogConfig() *LogConfig {
	components := make(map[string]bool)
	for c, enabled := range DefaultConfig().Components {
		components[string(c)] = enabled
	}
	return &LogConfig{
		Level:      "INFO",
		Format:     "text",
		Output:     "stderr",
		Components: components,
		ShowCaller: false,
		Timestamp:  true,
	}
}

// ToLoggerConfig converts LogConfig to logger.Config
func (c *LogConfig) ToLoggerConfig() (*Config, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}

	format, err := parseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("parse format: %w", err)
	}

	output, err := parseOutput(c.Output)
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}

	components := make(map[Component]bool)
	for name, enabled := range c.Components {
		components[Component(name)] = enabled
	}

	return &Config{
		Level:      level,
		Format:     format,
		Output:     output,
		Components: components,
		ShowCaller: c.ShowCaller,
		Timestamp:  c.Timestamp,
	}, nil
}

// parseLevel parses level string to Level enum
func parseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// parseFormat parses format string to Format enum
func parseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "color", "colored":
		return FormatColor, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", formatStr)
	}
}

// parseOutput parses output string to io.Writer
func parseOutput(outputStr string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(outputStr)) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "null", "none":
		return io.Discard, nil
	}
	if strings.HasPrefix(outputStr, "file:") {
		filePath := strings.TrimPrefix(outputStr, "file:")
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("unknown output: %s", outputStr)
}

// CreateLoggerFromConfig creates a logger from LogConfig
func CreateLoggerFromConfig(config *LogConfig) (*Logger, error) {
	loggerConfig, err := config.ToLoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("convert config: %w", err)
	}
	return New(loggerConfig), nil
}

// EnvironmentConfig loads configuration from environment variables
func EnvironmentConfig() *LogConfig {
	config := DefaultLogConfig()

	if level := os.Getenv(EnvLevel); level != "" {
		config.Level = level
	}
	if format := os.Getenv(EnvFormat); format != "" {
		config.Format = format
	}
	if output := os.Getenv(EnvOutput); output != "" {
		config.Output = output
	}
	if caller := os.Getenv(EnvCaller); caller != "" {
		config.ShowCaller = caller == "true" || caller == "1"
	}
	if timestamp := os.Getenv(EnvTimestamp); timestamp != "" {
		config.Timestamp = timestamp == "true" || timestamp == "1"
	}

	// A component list replaces the defaults; "all" enables every known component.
	if components := os.Getenv(EnvComponents); components != "" {
		config.Components = make(map[string]bool)
		for _, comp := range strings.Split(components, ",") {
			comp = strings.TrimSpace(comp)
			if comp == "" {
				continue
			}
			if comp == "all" {
				for c := range DefaultConfig().Components {
					config.Components[string(c)] = true
				}
				continue
			}
			config.Components[comp] = true
		}
	}

	return config
}

// ValidateConfig validates the configuration
func (c *LogConfig) ValidateConfig() error {
	if _, err := parseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	if _, err := parseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Output)) {
	case "stdout", "stderr", "null", "none", "":
	default:
		if !strings.HasPrefix(c.Output, "file:") {
			return fmt.Errorf("invalid output: %s", c.Output)
		}
	}
	return nil
}
