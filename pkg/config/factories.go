package config

import (
	"fmt"

	"github.com/marmos91/memfsd/internal/logger"
)

// ConfigureLogging applies the logging section to the process logger.
//
// Output is opened before the level and format change so a bad path leaves
// the logger as it was.
func ConfigureLogging(cfg *LoggingConfig) error {
	if err := logger.SetOutput(cfg.Output); err != nil {
		return fmt.Errorf("failed to set log output %q: %w", cfg.Output, err)
	}
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	return nil
}
