// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是进程级的基础日志器，Init 之前使用默认的 stderr JSON 输出
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init 根据服务名和日志级别初始化全局日志器。
// level 为空或无法解析时回退到 info。
func Init(serviceName, level string) {
	InitWithWriter(serviceName, level, os.Stderr)
}

// InitWithWriter 与 Init 相同，但允许指定输出目标（测试中使用）
func InitWithWriter(serviceName, level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回携带当前 span 的 trace_id / span_id 的日志器
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if ctx == nil {
		return &l
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}
