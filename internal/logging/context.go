package logging

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"
)

type logDataKey struct{}

// GetLogData returns the request-scoped LogData, or nil when the request
// did not pass through the logging middleware.
func GetLogData(ctx context.Context) *LogData {
	logData, _ := ctx.Value(logDataKey{}).(*LogData)
	return logData
}

// HumaMiddleware attaches a fresh LogData to every request context and emits
// the accumulated fields and timings once the handler completes.
func HumaMiddleware(log *logrus.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		logData := NewLogData(log)
		ctx = huma.WithValue(ctx, logDataKey{}, logData)

		operationID := ctx.Operation().OperationID

		endTimer := logData.AddTiming("duration")
		next(ctx)
		endTimer()

		if ctx.Status() >= 400 {
			logData.Log().Errorf("Handler.%v.Error", operationID)
			return
		}
		logData.Log().Infof("Handler.%v.Complete", operationID)
	}
}
