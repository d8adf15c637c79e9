package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLogger writes one JSON object per line describing codec activity
type TraceLogger struct {
	logger   *zap.Logger
	file     *os.File
	filename string
}

// NewTraceLogger creates a trace file in dir (the OS temp dir when empty).
// A disabled trace logger discards everything.
func NewTraceLogger(enabled bool, dir string) (*TraceLogger, error) {
	if !enabled {
		return &TraceLogger{logger: zap.NewNop()}, nil
	}
	if dir == "" {
		dir = os.TempDir()
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("odata_codec_trace_%s.log", timestamp))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(file), zapcore.DebugLevel)

	t := &TraceLogger{logger: zap.New(core), file: file, filename: filename}
	t.logger.Info("trace logging started", zap.String("filename", filename), zap.Int("pid", os.Getpid()))
	return t, nil
}

// Logger returns the underlying logger so codec warnings land in the trace
func (t *TraceLogger) Logger() *zap.Logger {
	return t.logger
}

// LogOperation records one decode or encode step of the CLI
func (t *TraceLogger) LogOperation(step, kind, contentType string, bytes int64, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("step", step),
		zap.String("kind", kind),
		zap.String("content_type", contentType),
		zap.Int64("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		t.logger.Error("codec operation failed", append(fields, zap.Error(err))...)
		return
	}
	t.logger.Info("codec operation", fields...)
}

// GetFilename returns the trace filename, empty when tracing is disabled
func (t *TraceLogger) GetFilename() string {
	return t.filename
}

// Close flushes and closes the trace file
func (t *TraceLogger) Close() error {
	if t.file == nil {
		return nil
	}
	t.logger.Info("trace logging stopped")
	_ = t.logger.Sync()
	return t.file.Close()
}
