package logging

import "go.uber.org/zap"

// CronLogger adapts a Logger to the robfig/cron Logger interface.
type CronLogger struct {
	l *Logger
}

// NewCronLogger wraps l for use with cron.WithLogger and the cron job wrappers
func NewCronLogger(l *Logger) CronLogger {
	return CronLogger{l: l.WithField("component", "cron")}
}

// Info logs routine scheduler events at debug level
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.z.Sugar().Debugw(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered job panics
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.z.Sugar().With(zap.Error(err)).Errorw(msg, keysAndValues...)
}
