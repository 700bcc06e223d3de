package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zx06/xssh/internal/errors"
	"github.com/zx06/xssh/internal/keepalive"
	"github.com/zx06/xssh/internal/session"
	"github.com/zx06/xssh/internal/ssh"
	"github.com/zx06/xssh/internal/tunnel"
)

// retryBackoff 是两次连接尝试之间的固定间隔。不指数增长，不加抖动。
const retryBackoff = time.Second

// Supervisor 是顶层连接监督循环：最多 Attempts 次连接尝试，每次全新
// 会话；成功后并发启动 keepalive 看门狗与本地转发，前台运行 exec 或
// shell 多路复用器，其结束即为本次尝试结束。会话在每条退出路径上
// 都由 Supervisor 关闭。
type Supervisor struct {
	Opts ssh.Options

	Command  string // 一次性远端命令；为空则交互式 shell
	Forwards []tunnel.Spec
	Attempts int

	ServerAliveInterval time.Duration

	Term   session.Terminal
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	Logger *slog.Logger

	// 注入点（测试）
	Connect func(ctx context.Context, opts ssh.Options) (*ssh.Client, *errors.XError)
	Sleep   func(d time.Duration)
	Exit    func(code int) // keepalive 判定死亡后的单方面进程退出
}

// Run 执行监督循环。返回前台模式的退出码（exec 模式为远端命令的
// 退出码，shell 干净退出为 0）。只有传输层连接超时/拒绝会消耗
// 后续尝试；其余失败立即致命。
func (s *Supervisor) Run(ctx context.Context) (int, *errors.XError) {
	logger := s.logger()
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *errors.XError
	for i := 1; i <= attempts; i++ {
		code, xe := s.attempt(ctx)
		if xe == nil {
			return code, nil
		}
		if !errors.Retryable(xe.Code) {
			return 0, xe
		}
		lastErr = xe
		logger.Warn("connection attempt failed", "attempt", i, "attempts", attempts, "err", xe)
		if i < attempts {
			s.sleep(retryBackoff)
		}
	}
	return 0, lastErr
}

// attempt 执行一次完整的连接尝试：连接（含主机校验与认证链）→
// 绑定转发 → 启动看门狗 → 前台多路复用。
func (s *Supervisor) attempt(ctx context.Context) (int, *errors.XError) {
	client, xe := s.connect(ctx)
	if xe != nil {
		return 0, xe
	}
	defer func() { _ = client.Close() }()

	// 转发绑定失败必须在前台模式开始之前致命。
	if len(s.Forwards) > 0 {
		mgr, xe := tunnel.Start(s.Forwards, client, s.logger())
		if xe != nil {
			return 0, xe
		}
		defer func() { _ = mgr.Close() }()
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.ServerAliveInterval > 0 {
		w := &keepalive.Watchdog{
			Interval: s.ServerAliveInterval,
			Prober:   client,
			Logger:   s.logger(),
			OnDead:   func() { s.exit(int(errors.ExitFailure)) },
		}
		go w.Run(wctx)
	}

	remote, err := client.NewSession()
	if err != nil {
		return 0, errors.Wrap(errors.CodeSessionFailed, "failed to open session channel", nil, err)
	}
	defer func() { _ = remote.Close() }()

	if s.Command != "" {
		return session.RunExec(remote, s.Command, s.Out, s.ErrOut, s.logger())
	}

	xe = session.RunShell(remote, session.ShellOptions{
		Term:   s.Term,
		In:     s.In,
		Out:    s.Out,
		Logger: s.logger(),
	})
	if xe != nil {
		return 0, xe
	}
	return 0, nil
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *Supervisor) connect(ctx context.Context) (*ssh.Client, *errors.XError) {
	if s.Connect != nil {
		return s.Connect(ctx, s.Opts)
	}
	return ssh.Connect(ctx, s.Opts)
}

func (s *Supervisor) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (s *Supervisor) exit(code int) {
	if s.Exit != nil {
		s.Exit(code)
		return
	}
	os.Exit(code)
}
