package util

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// SetLogLevel sets the logger level from the LOG_LEVEL value. Unknown values fall back to info.
func SetLogLevel(logger *logrus.Logger, logLevel string) {
	switch strings.ToLower(logLevel) {
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// NewLogger creates the JSON logger used by every Lambda
func NewLogger(isLocal bool, logLevel string) *logrus.Logger {
	logger := logrus.New()
	SetLogLevel(logger, logLevel)
	logger.SetFormatter(&logrus.JSONFormatter{PrettyPrint: isLocal})
	return logger
}
