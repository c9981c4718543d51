package main

import (
	"os"

	"github.com/samcharles93/hearth/internal/logger"
)

// buildLogger constructs the CLI logger from --log-level/--log-format.
// Pretty output falls back to plain text when stderr is not a terminal.
func buildLogger() logger.Logger {
	level := logLevel
	if debug {
		level = "debug"
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, logger.ParseLevel(level))
	case "pretty":
		if stderrIsTTY() {
			return logger.Pretty(os.Stderr, logger.ParseLevel(level))
		}
	}
	return logger.Text(os.Stderr, logger.ParseLevel(level))
}
