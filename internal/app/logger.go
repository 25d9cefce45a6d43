package app

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taximeter/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// InitLogger parses the configured level and installs the formatter on the
// standard logrus logger. An unknown level or format is an error.
func InitLogger(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logrus.SetLevel(level)
	return nil
}
