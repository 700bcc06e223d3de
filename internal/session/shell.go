package session

import (
	"io"
	"log/slog"

	gossh "golang.org/x/crypto/ssh"

	"github.com/zx06/xssh/internal/errors"
)

// ShellOptions 配置一次交互式 shell 会话。
type ShellOptions struct {
	Term     Terminal  // 本地控制终端
	In       io.Reader // 本地输入（通常 os.Stdin）
	Out      io.Writer // 本地输出（通常 os.Stdout）
	TermType string    // 为空则 xterm-256color
	Logger   *slog.Logger
}

// RunShell 在 remote 上运行交互式 shell：
//
//   - 进入 raw 模式（作用域句柄保证任何退出路径都恢复 cooked 模式）；
//   - 按当前终端尺寸申请 PTY 并启动 shell；
//   - resize 事件源驱动 WindowChange，事件源随会话确定性注销；
//   - 双向各一条泵，先到达 EOF 的一条结束整个会话。
//
// 被放弃的另一条泵阻塞在一次永不返回的读上，由进程退出回收；
// 这是既定行为，不做显式取消。
func RunShell(remote Remote, opts ShellOptions) *errors.XError {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	termType := opts.TermType
	if termType == "" {
		termType = "xterm-256color"
	}

	if opts.Term.IsTerminal() {
		restore, err := opts.Term.MakeRaw()
		if err != nil {
			return errors.Wrap(errors.CodeSessionFailed, "failed to enter raw mode", nil, err)
		}
		defer restore()
	}

	rows, cols := opts.Term.Size()
	if err := remote.RequestPty(termType, rows, cols, gossh.TerminalModes{}); err != nil {
		return errors.Wrap(errors.CodeSessionFailed, "failed to request pty", nil, err)
	}

	stdin, err := remote.StdinPipe()
	if err != nil {
		return errors.Wrap(errors.CodeSessionFailed, "failed to open remote stdin", nil, err)
	}
	stdout, err := remote.StdoutPipe()
	if err != nil {
		return errors.Wrap(errors.CodeSessionFailed, "failed to open remote stdout", nil, err)
	}

	if err := remote.Shell(); err != nil {
		return errors.Wrap(errors.CodeSessionFailed, "failed to start remote shell", nil, err)
	}

	resize, stopResize := opts.Term.Notify()
	defer stopResize()
	go func() {
		for range resize {
			r, c := opts.Term.Size()
			if err := remote.WindowChange(r, c); err != nil {
				logger.Debug("window change failed", "err", err)
			}
		}
	}()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(opts.Out, stdout)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(stdin, opts.In)
		done <- struct{}{}
	}()
	<-done
	return nil
}
