package observe

import (
	"context"
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
)

// ParseLogLevel parses a string log level. Unknown levels map to info.
func ParseLogLevel(s string) logrus.Level {
	switch s {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// structuredLogger writes JSON lines through logrus.
type structuredLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a JSON logger writing to stderr at the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(ParseLogLevel(level))
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
		},
	})
	return &structuredLogger{entry: logrus.NewEntry(l)}
}

// WithCommand returns a logger scoped to one command type.
func (l *structuredLogger) WithCommand(meta CommandMeta) Logger {
	fields := logrus.Fields{"command": meta.Command}
	if meta.Namespace != "" {
		fields["namespace"] = meta.Namespace
	}
	return &structuredLogger{entry: l.entry.WithFields(fields)}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx, fields).Info(msg)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx, fields).Warn(msg)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx, fields).Error(msg)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx, fields).Debug(msg)
}

func (l *structuredLogger) with(ctx context.Context, fields []Field) *logrus.Entry {
	e := l.entry.WithContext(ctx)
	if len(fields) == 0 {
		return e
	}
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if isRedactedField(f.Key) {
			out[f.Key] = "[REDACTED]"
			continue
		}
		if err, ok := f.Value.(error); ok {
			out[f.Key] = err.Error()
			continue
		}
		out[f.Key] = f.Value
	}
	return e.WithFields(out)
}

func isRedactedField(key string) bool {
	return slices.Contains(RedactedFields, key)
}

var _ Logger = (*structuredLogger)(nil)
