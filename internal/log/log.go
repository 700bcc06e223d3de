package log

import (
	"io"
	"log/slog"
)

// New 返回写入到 w 的 slog.Logger（默认 level=INFO）。
// 注意：stdout=会话数据，日志应始终写 stderr（由调用方传入）。
// debug=true 时降为 DEBUG，按凭据/按连接的失败细节只在该级别输出。
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
