package http

import (
	"fmt"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// leveledLogger adapts portal.Logger to retryablehttp.LeveledLogger so
// that retry attempts and give-ups are reported through the client logger.
type leveledLogger struct {
	logger portal.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, toFields(keysAndValues))
}

// Debug is dropped: the client logs its own request and response lines.
func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])

		value := keysAndValues[i+1]
		if key == "url" {
			value = portal.RedactToken(fmt.Sprint(value))
		}

		fields[key] = value
	}

	return fields
}
