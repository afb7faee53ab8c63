package main

import (
	"fmt"
	"os"

	"github.com/crewdhq/crewd/pkg/config"
	"github.com/crewdhq/crewd/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger initializes the logger for the serve command.
// Priority: CLI flags > env vars > config file > defaults.
// Returns a cleanup function (nil when logging to stderr).
func initLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	logLevel := cli.LogLevel
	if logLevel == "" {
		logLevel = os.Getenv(LogLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = cfg.Level
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFile := cli.LogFile
	if logFile == "" {
		logFile = os.Getenv(LogFileEnvVar)
	}
	if logFile == "" {
		logFile = cfg.File
	}

	logFormat := cli.LogFormat
	if logFormat == "" {
		logFormat = os.Getenv(LogFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = cfg.Format
	}
	if logFormat == "" {
		logFormat = "text"
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output *os.File
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	} else {
		output = os.Stderr
	}

	logger.Init(level, output, logFormat)

	return cleanup, nil
}
