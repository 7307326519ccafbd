package safe

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
	"ticketboard.com/pkg/logger"
)

// Go 安全启动协程，panic 只记日志不拖垮进程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 同 Go，ctx 会传给 fn，也用于日志里的 trace/request id
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer Recover(ctx, "goroutine")
		fn(ctx)
	}()
}

// Recover 在 defer 中调用；返回值表示是否发生过 panic
func Recover(ctx context.Context, where string) (panicked bool) {
	if r := recover(); r != nil {
		logger.Error(ctx, "panic recovered",
			zap.String("where", where),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
		return true
	}
	return false
}
