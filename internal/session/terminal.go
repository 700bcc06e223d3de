package session

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// 本地终端尺寸查询失败时的兜底值。
const (
	defaultRows = 24
	defaultCols = 80
)

// Terminal 抽象本地控制终端：raw 模式为带恢复句柄的作用域获取，
// resize 事件为显式事件源，可确定性注销。
type Terminal interface {
	IsTerminal() bool

	// MakeRaw 进入 raw 模式，返回恢复句柄。任何退出路径都必须调用恢复。
	MakeRaw() (restore func(), err error)

	// Size 返回当前 (rows, cols)；查询失败时返回 24×80。
	Size() (rows, cols int)

	// Notify 返回 resize 事件源与注销函数。注销后事件源关闭。
	Notify() (resize <-chan os.Signal, stop func())
}

type localTerminal struct {
	fd int
}

// NewTerminal 包装 f（通常是 os.Stdin）为本地控制终端。
func NewTerminal(f *os.File) Terminal {
	return &localTerminal{fd: int(f.Fd())}
}

func (t *localTerminal) IsTerminal() bool {
	return term.IsTerminal(t.fd)
}

func (t *localTerminal) MakeRaw() (func(), error) {
	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(t.fd, state) }, nil
}

func (t *localTerminal) Size() (int, int) {
	cols, rows, err := term.GetSize(t.fd)
	if err != nil || rows <= 0 || cols <= 0 {
		return defaultRows, defaultCols
	}
	return rows, cols
}

func (t *localTerminal) Notify() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	return ch, func() {
		signal.Stop(ch)
		close(ch)
	}
}
