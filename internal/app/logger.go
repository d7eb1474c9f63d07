package app

import (
	"strings"

	"github.com/charlesng35/clubhouse/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level string) error {
	return ConfigureLoggingWithFormat(level, "")
}

// ConfigureLoggingWithFormat initialises the global logger for a named service.
func ConfigureLoggingWithFormat(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(level, logger.Options{Format: strings.TrimSpace(format), Service: "clubhouse"})
}
