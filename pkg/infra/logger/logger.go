package logger

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide structured logger: JSON formatted,
// buffered async file output plus a console hook.
func NewLogger(level, logFile string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if logFile == "" {
		logger.SetOutput(os.Stdout)
		return logger
	}

	logFile = filepath.Clean(logFile)
	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	asyncWriter, err := NewAsyncFileWriter(logFile, 32*1024)
	if err != nil {
		log.Fatalf("Failed to initialize async log writer: %v", err)
	}

	logger.SetOutput(asyncWriter)
	logger.AddHook(NewConsoleHook())

	return logger
}
