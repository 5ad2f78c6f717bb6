package logging

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	AppLogger     *zap.Logger = zap.NewNop()
	RequestLogger *zap.Logger = zap.NewNop()
	TimerLogger   *zap.Logger = zap.NewNop()
	ErrorLogger   *zap.Logger = zap.NewNop()
)

type traceKey struct{}

// WithTraceID tags ctx so LogDuration can correlate timings with a request or operation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// ensureLogsDir makes sure the log folder exists
func ensureLogsDir(dir string) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		panic("Failed to create logs directory: " + err.Error())
	}
}

// InitLogger writes to ./logs, or to LOG_DIR when set.
func InitLogger() {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = "./logs"
	}
	InitLoggerInDir(dir)
}

func InitLoggerInDir(dir string) {
	ensureLogsDir(dir)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	newCore := func(name string, maxSize, maxAge int, level zapcore.Level) zapcore.Core {
		return zapcore.NewCore(encoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename: filepath.Join(dir, name), MaxSize: maxSize, MaxAge: maxAge, Compress: true,
			}),
			level,
		)
	}

	// app.log (general logs)
	AppLogger = zap.New(newCore("app.log", 100, 28, zap.InfoLevel))
	// request.log
	RequestLogger = zap.New(newCore("request.log", 50, 7, zap.InfoLevel))
	// timer.log
	TimerLogger = zap.New(newCore("timer.log", 50, 7, zap.InfoLevel))
	// error.log
	ErrorLogger = zap.New(newCore("error.log", 100, 30, zap.ErrorLevel))
}

// InitNopLogger silences every logger. Tests use it so nothing touches the filesystem.
func InitNopLogger() {
	AppLogger = zap.NewNop()
	RequestLogger = zap.NewNop()
	TimerLogger = zap.NewNop()
	ErrorLogger = zap.NewNop()
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	for _, l := range []*zap.Logger{AppLogger, RequestLogger, TimerLogger, ErrorLogger} {
		_ = l.Sync()
	}
}

// LogDuration lets you do: defer logging.LogDuration(ctx, "FuncName")()
func LogDuration(ctx context.Context, name string) func() {
	start := time.Now()
	traceID := TraceID(ctx)

	return func() {
		duration := time.Since(start).Milliseconds()
		fields := []zap.Field{
			zap.String("func", name),
			zap.Int64("duration_ms", duration),
		}
		if traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}

		// write ONLY to timer.log
		TimerLogger.Info("Function timed", fields...)
	}
}
