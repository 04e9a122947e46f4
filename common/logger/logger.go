package logger

import (
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger, a no-op until Initialize runs.
var Log = zap.NewNop()

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// Initialize builds the process logger. Production writes JSON to stdout,
// other environments a colored console format. A non-nil remote sink gets
// the same entries as JSON. LOG_LEVEL overrides the default level.
func Initialize(env string, remote io.Writer) (*zap.Logger, error) {
	return build(env, os.Getenv("LOG_LEVEL"), zapcore.Lock(os.Stdout), remote)
}

func build(env, levelName string, stdout zapcore.WriteSyncer, remote io.Writer) (*zap.Logger, error) {
	prod := env == "production"

	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	if prod {
		level.SetLevel(zapcore.InfoLevel)
	}
	if levelName != "" {
		if err := level.UnmarshalText([]byte(levelName)); err != nil {
			return nil, err
		}
	}

	jsonEnc := zap.NewProductionEncoderConfig()
	jsonEnc.TimeKey = "timestamp"
	jsonEnc.EncodeTime = zapcore.ISO8601TimeEncoder

	var local zapcore.Core
	if prod {
		local = zapcore.NewCore(zapcore.NewJSONEncoder(jsonEnc), stdout, level)
	} else {
		devEnc := zap.NewDevelopmentEncoderConfig()
		devEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		local = zapcore.NewCore(zapcore.NewConsoleEncoder(devEnc), stdout, level)
	}

	core := local
	if remote != nil {
		core = zapcore.NewTee(local, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEnc), zapcore.AddSync(remote), level))
	}

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return Log, nil
}

// RequestID reuses the caller's X-Request-ID or mints one, and echoes it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func FromGin(c *gin.Context, base *zap.Logger) *zap.Logger {
	if id := c.GetString(RequestIDKey); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
