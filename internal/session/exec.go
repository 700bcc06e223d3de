package session

import (
	stderrors "errors"
	"io"
	"log/slog"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/zx06/xssh/internal/errors"
)

// RunExec 在 remote 上执行一次性命令，把远端 stdout/stderr 分别泵到
// out/errOut。两条流独立排空，各自的字节序严格保持；两条流都到达
// EOF 后读取远端退出码并原样返回（不可得时为 0）。
func RunExec(remote Remote, command string, out, errOut io.Writer, logger *slog.Logger) (int, *errors.XError) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	stdout, err := remote.StdoutPipe()
	if err != nil {
		return 0, errors.Wrap(errors.CodeSessionFailed, "failed to open remote stdout", nil, err)
	}
	stderr, err := remote.StderrPipe()
	if err != nil {
		return 0, errors.Wrap(errors.CodeSessionFailed, "failed to open remote stderr", nil, err)
	}

	if err := remote.Start(command); err != nil {
		return 0, errors.Wrap(errors.CodeSessionFailed, "failed to start remote command", map[string]any{"command": command}, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(out, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(errOut, stderr)
		return err
	})
	if err := g.Wait(); err != nil {
		// 读错误等同于流结束；退出码仍以远端报告为准。
		logger.Debug("remote stream ended with error", "err", err)
	}

	err = remote.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr interface{ ExitStatus() int }
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missErr *gossh.ExitMissingError
	if stderrors.As(err, &missErr) {
		// 远端未报告退出码；按 0 处理。
		return 0, nil
	}
	return 0, errors.Wrap(errors.CodeSessionFailed, "remote command failed", map[string]any{"command": command}, err)
}
