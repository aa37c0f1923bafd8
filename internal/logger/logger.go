package logger

import (
	"io"
	"os"

	"golang-pool-streamer/internal/utils"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global logger. With logFile set, entries are written
// as JSON to a rotating file in addition to the console.
func Setup(level, logFile string) {
	Configure(logrus.StandardLogger(), level, logFile)
}

// Configure applies the level, formatter and output to l.
func Configure(l *logrus.Logger, level, logFile string) {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		l.Warn("Invalid log level, defaulting to info")
		logLevel = logrus.InfoLevel
	}
	l.SetLevel(logLevel)

	if logFile == "" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
			PadLevelText:    true,
		})
		l.SetOutput(os.Stdout)
		return
	}

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(io.MultiWriter(os.Stdout, RotatingFile(logFile)))
}

// RotatingFile returns a size-rotated log file writer.
func RotatingFile(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    500,
		MaxBackups: 10,
		MaxAge:     28,
		Compress:   true,
	}
}

func LogStartup(pool string) {
	logrus.Info("🤖 Starting pool trade streamer")
	logrus.WithField("pool", pool).Info("🔍 Streaming swaps and liquidity events for pool...")
}

// LogConnection reports the outcome of connecting to service. err is
// sanitized against endpoints before it is logged.
func LogConnection(service string, err error, endpoints ...string) {
	if err == nil {
		logrus.WithField("service", service).Info("✅ Connected")
		return
	}
	logrus.WithFields(logrus.Fields{
		"service": service,
		"error":   utils.SanitizeError(err, endpoints...),
	}).Warn("⚠️  Connection issue")
}
