package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Field is a single structured log field.
type Field struct {
	Key   string
	Value interface{}
}

type Fields map[string]interface{}

// Logger wraps a logrus entry with the service name attached.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger for the given service. Level and format are
// taken from LOG_LEVEL / LOG_FORMAT, defaulting to info + json.
func NewLogger(service string) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch os.Getenv("LOG_FORMAT") {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	log.SetOutput(os.Stdout)

	return &Logger{entry: log.WithField("service", service)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.withFields(fields).Debug(msg) }
func (l *Logger) Info(msg string, fields ...Field)  { l.withFields(fields).Info(msg) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.withFields(fields).Warning(msg) }
func (l *Logger) Error(msg string, fields ...Field) { l.withFields(fields).Error(msg) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.withFields(fields).Fatal(msg) }

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields Fields) *Logger {
	logrusFields := logrus.Fields{}
	for k, v := range fields {
		logrusFields[k] = v
	}
	return &Logger{entry: l.entry.WithFields(logrusFields)}
}

func (l *Logger) withFields(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	logrusFields := logrus.Fields{}
	for _, f := range fields {
		logrusFields[f.Key] = f.Value
	}
	return l.entry.WithFields(logrusFields)
}
