// Package keepalive 周期性探测会话存活，连续失败达到阈值后
// 强制拆除会话并单方面结束进程——此时前台泵可能永久阻塞在
// 一条死连接的读上，常规失败路径无法触达。
package keepalive

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Prober 发送协议级 keepalive 探测（由 ssh.Client 实现）。
// Close 用于探测耗尽后强制关闭会话（尽力而为，错误忽略）。
type Prober interface {
	SendKeepalive() error
	Close() error
}

// failureThreshold 是判定连接死亡的连续失败次数。
const failureThreshold = 3

// Watchdog 是 keepalive 看门狗。Interval<=0 时不应启动。
type Watchdog struct {
	Interval time.Duration
	Prober   Prober
	Logger   *slog.Logger

	// OnDead 在判定连接死亡、会话已强制关闭后调用。
	// 常规装配注入 os.Exit(1)；测试注入计数器。
	OnDead func()
}

// Run 运行探测循环直到 ctx 取消或判定死亡。
// 任何一次成功都将连续失败计数清零。
func (w *Watchdog) Run(ctx context.Context) {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.Prober.SendKeepalive(); err != nil {
				failures++
				logger.Debug("keepalive probe failed", "failures", failures, "err", err)
				if failures >= failureThreshold {
					logger.Error("server not responding; terminating session", "failures", failures)
					_ = w.Prober.Close()
					if w.OnDead != nil {
						w.OnDead()
					}
					return
				}
			} else {
				failures = 0
			}
		}
	}
}
