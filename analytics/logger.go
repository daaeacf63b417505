package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileDataCollector appends every record as a json line to a file.
type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

var _ WorkflowDataCollector = new(LogFileDataCollector)

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) Collect(rec Record) error {
	fields := []zap.Field{
		zap.String("name", rec.FlowName),
		zap.String("id", rec.FlowId),
		zap.Time("at", rec.At),
	}
	if len(rec.ActionId) != 0 {
		fields = append(fields, zap.String("action", rec.ActionName), zap.String("actionId", rec.ActionId))
	}
	if len(rec.Policy) != 0 {
		fields = append(fields, zap.String("policy", string(rec.Policy)))
	}
	if rec.Duration > 0 {
		fields = append(fields, zap.Duration("duration", rec.Duration))
	}
	if len(rec.Reason) != 0 {
		fields = append(fields, zap.String("reason", rec.Reason))
	}
	if rec.Data != nil {
		fields = append(fields, zap.Any("data", rec.Data))
	}
	lc.logger.Info(string(rec.Kind), fields...)
	return nil
}

func (lc *LogFileDataCollector) Close() error {
	return lc.logger.Sync()
}
