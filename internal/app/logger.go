package app

import (
	"strings"

	"github.com/contextmeet/contextmeet/pkg/logger"
)

// ConfigureLogging initialises the global logger from the configured level.
// Blank means info.
func ConfigureLogging(level string) error {
	if level = strings.TrimSpace(level); level == "" {
		level = "info"
	}
	return logger.Init(level)
}
