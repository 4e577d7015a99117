package utils

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ISO 8601
const timestampFormat = "2006-01-02T15:04:05Z07:00"

// init applies JSON logging at info level to stdout until ConfigureLogger runs.
func init() {
	ConfigureLogger("info", "json", os.Stdout)
}

// ConfigureLogger applies the configured level and output format.
// Unknown levels fall back to info.
func ConfigureLogger(level, format string, out io.Writer) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	} else {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: timestampFormat})
	}
	if out != nil {
		log.SetOutput(out)
	}
}

// Debug logs a message at debug level with optional fields
func Debug(message string, fields map[string]any) {
	log.WithFields(fields).Debug(message)
}

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) {
	log.WithFields(fields).Info(message)
}

// Warn logs a message at warning level with optional fields
func Warn(message string, fields map[string]any) {
	log.WithFields(fields).Warn(message)
}

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) {
	log.WithFields(fields).Error(message)
}

// Fatal logs a message at fatal level and exits the application
func Fatal(message string, fields map[string]any) {
	log.WithFields(fields).Fatal(message)
}
