// Package utils holds small shared helpers: logger setup and level parsing.
package utils

import (
	"fmt"
	"io"
	"os"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
)

var logLevels = map[string]logrus.Level{
	"trace":    logrus.TraceLevel,
	"debug":    logrus.DebugLevel,
	"info":     logrus.InfoLevel,
	"warn":     logrus.WarnLevel,
	"warning":  logrus.WarnLevel,
	"error":    logrus.ErrorLevel,
	"critical": logrus.FatalLevel,
}

// SetupLogger configures the global logrus logger: level by name, compact
// line format, and an optional log file mirrored alongside stdout. The
// returned closer flushes the log file, if any.
func SetupLogger(levelName, filePath string) (func(), error) {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})

	level, ok := logLevels[levelName]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", levelName)
	}
	logrus.SetLevel(level)

	closer := func() {}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
		closer = func() { _ = f.Close() }
	}
	return closer, nil
}
