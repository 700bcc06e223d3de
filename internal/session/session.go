// Package session 在本地终端与一条远端会话通道之间搬运字节。
//
// 两种互斥模式：exec（一次性远端命令，独立泵空 stdout/stderr，
// 透传退出码）与 shell（交互式，PTY + raw 模式 + resize 转发，
// 双向泵先结束者即结束整个会话）。
package session

import (
	"io"

	gossh "golang.org/x/crypto/ssh"
)

// Remote 抽象一条远端会话通道，由 *gossh.Session 实现。
// 每个 Remote 由创建它的逻辑流独占，绝不跨组件共享。
type Remote interface {
	RequestPty(term string, h, w int, modes gossh.TerminalModes) error
	Shell() error
	Start(cmd string) error
	Wait() error
	WindowChange(h, w int) error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Close() error
}
