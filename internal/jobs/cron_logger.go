package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine scheduler messages at debug level; job runs log their own summaries.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, cl.fields(keysAndValues...)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(cl.fields(keysAndValues...), zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) fields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
