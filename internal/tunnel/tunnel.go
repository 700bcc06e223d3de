package tunnel

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/zx06/xssh/internal/errors"
)

// Dialer 打开经由既有会话的 direct-tcpip 通道（由 ssh.Client 实现）。
// origin 标记发起端地址。
type Dialer interface {
	OpenTunnel(remoteHost string, remotePort int, origin net.Addr) (io.ReadWriteCloser, error)
}

// Forward 是一条本地转发：一个本地监听器 + 接入循环。
// 接入循环容忍单连接错误无限存活；只有监听器级错误结束整条转发。
type Forward struct {
	spec     Spec
	dialer   Dialer
	listener net.Listener
	logger   *slog.Logger
	wg       sync.WaitGroup
	closed   chan struct{}
}

// Listen 在 127.0.0.1:localPort 上绑定一条转发的本地监听器。
func Listen(spec Spec, dialer Dialer, logger *slog.Logger) (*Forward, *errors.XError) {
	addr := fmt.Sprintf("127.0.0.1:%d", spec.LocalPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.CodeTunnelBindFailed, "failed to bind local forward", map[string]any{"address": addr}, err)
	}
	return &Forward{
		spec:     spec,
		dialer:   dialer,
		listener: listener,
		logger:   logger,
		closed:   make(chan struct{}),
	}, nil
}

// Serve 运行接入循环，直到监听器关闭。每个接入连接独立处理。
func (f *Forward) Serve() {
	for {
		localConn, err := f.listener.Accept()
		if err != nil {
			select {
			case <-f.closed:
			default:
				f.logger.Error("forward listener failed", "local_port", f.spec.LocalPort, "err", err)
			}
			return
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handle(localConn)
		}()
	}
}

// handle 桥接一个本地连接：打开 direct-tcpip 通道后双向泵字节。
// 任一方向到达 EOF 即结束；通道和本地连接无条件关闭。
func (f *Forward) handle(localConn net.Conn) {
	defer func() { _ = localConn.Close() }()

	ch, err := f.dialer.OpenTunnel(f.spec.RemoteHost, f.spec.RemotePort, localConn.LocalAddr())
	if err != nil {
		f.logger.Warn("failed to open tunnel channel",
			"remote", fmt.Sprintf("%s:%d", f.spec.RemoteHost, f.spec.RemotePort), "err", err)
		return
	}
	defer func() { _ = ch.Close() }()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(ch, localConn)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(localConn, ch)
		done <- struct{}{}
	}()
	<-done
}

// Close 关闭监听器并等待在途连接的处理器退出。
func (f *Forward) Close() error {
	close(f.closed)
	err := f.listener.Close()
	f.wg.Wait()
	return err
}

// LocalAddress 返回监听器实际绑定的本地地址。
func (f *Forward) LocalAddress() string {
	if f.listener != nil {
		return f.listener.Addr().String()
	}
	return ""
}

// Manager 持有一次连接的全部本地转发。
type Manager struct {
	forwards []*Forward
}

// Start 为每条 spec 独立绑定监听器。每个绑定失败单独上报；
// 只要有一个失败，已绑定的监听器全部回收并整体致命——
// 绑定失败必须在前台模式开始之前暴露。
func Start(specs []Spec, dialer Dialer, logger *slog.Logger) (*Manager, *errors.XError) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{}
	var failed []string
	for _, spec := range specs {
		fwd, xe := Listen(spec, dialer, logger)
		if xe != nil {
			logger.Error("local forward failed", "local_port", spec.LocalPort, "err", xe)
			failed = append(failed, fmt.Sprintf("%d", spec.LocalPort))
			continue
		}
		logger.Info("local forward listening",
			"local", fwd.LocalAddress(),
			"remote", fmt.Sprintf("%s:%d", spec.RemoteHost, spec.RemotePort))
		m.forwards = append(m.forwards, fwd)
	}
	if len(failed) > 0 {
		_ = m.Close()
		return nil, errors.New(errors.CodeTunnelBindFailed, "failed to bind local forward ports", map[string]any{"ports": failed})
	}
	for _, fwd := range m.forwards {
		go fwd.Serve()
	}
	return m, nil
}

// Close 关闭全部转发。
func (m *Manager) Close() error {
	var first error
	for _, fwd := range m.forwards {
		if err := fwd.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
