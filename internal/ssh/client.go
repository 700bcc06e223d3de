package ssh

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/zx06/xssh/internal/errors"
)

// Client 包装 gossh.Client，暴露会话编排层需要的能力：
// 打开前台会话、打开 direct-tcpip 隧道通道、发送 keepalive 探测。
// Client 的关闭只由 supervisor 执行。
type Client struct {
	client *gossh.Client
}

// Connect 建立 SSH 连接：主机校验（TOFU）→ 认证链逐候选登录。
// 每个候选凭据独立握手一次，首个成功者即为本连接的认证方式；
// 候选间的取舍遵循 BuildChain 的 Fatal 语义。
func Connect(ctx context.Context, opts Options) (*Client, *errors.XError) {
	if opts.Host == "" {
		return nil, errors.New(errors.CodeCfgInvalid, "host is required", nil)
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.User == "" {
		opts.User = os.Getenv("USER")
		if opts.User == "" {
			opts.User = os.Getenv("USERNAME")
		}
	}
	logger := opts.logger()

	hostKeyCallback, trust, xe := buildHostKeyCallback(opts)
	if xe != nil {
		return nil, xe
	}

	chain, xe := BuildChain(opts)
	if xe != nil {
		return nil, xe
	}
	if len(chain) == 0 {
		return nil, errors.New(errors.CodeAuthExhausted, "no ssh authentication method available", map[string]any{"host": opts.Host})
	}

	dial := opts.Dial
	if dial == nil {
		dial = gossh.Dial
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	tried := make([]string, 0, len(chain))
	for _, cred := range chain {
		config := &gossh.ClientConfig{
			User:            opts.User,
			Auth:            []gossh.AuthMethod{cred.Method},
			HostKeyCallback: hostKeyCallback,
			Timeout:         opts.ConnectTimeout,
		}
		if opts.Banner != nil {
			config.BannerCallback = func(banner string) error {
				_, err := fmt.Fprint(opts.Banner, strings.ReplaceAll(banner, "\n", "\r\n"))
				return err
			}
		}

		client, err := dial("tcp", addr, config)
		if err == nil {
			logger.Debug("ssh authentication succeeded", "credential", cred.Name)
			return &Client{client: client}, nil
		}

		// 信任裁决优先于一切分类：MISMATCH / declined 不可降级。
		if trust != nil {
			if txe := trust.Failure(); txe != nil {
				return nil, txe
			}
		}
		if xe := classifyDialError(err, addr); xe != nil {
			return nil, xe
		}
		if cred.Fatal {
			return nil, errors.Wrap(errors.CodeAuthExhausted, "authentication with supplied key failed", map[string]any{"credential": cred.Name}, err)
		}
		logger.Debug("auth candidate rejected", "credential", cred.Name, "err", err)
		tried = append(tried, cred.Name)
	}

	return nil, errors.New(errors.CodeAuthExhausted, "all authentication methods failed", map[string]any{
		"host":  opts.Host,
		"tried": strings.Join(tried, ","),
	})
}

func buildHostKeyCallback(opts Options) (gossh.HostKeyCallback, *TrustStore, *errors.XError) {
	if opts.SkipHostKey {
		opts.logger().Warn("host key verification disabled; connection is vulnerable to interception")
		return gossh.InsecureIgnoreHostKey(), nil, nil
	}
	trust := opts.Trust
	if trust == nil {
		khPath := opts.KnownHostsFile
		if khPath == "" {
			khPath = DefaultKnownHostsPath()
		}
		khPath = expandPath(khPath, opts.homeDir())
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		trust = NewTrustStore(khPath, os.Stdin, os.Stderr, interactive, opts.Logger)
	}
	cb, xe := trust.Callback()
	if xe != nil {
		return nil, nil, xe
	}
	return cb, trust, nil
}

// classifyDialError 识别可重试的传输层失败；认证失败返回 nil 交由
// 认证链继续。其余握手失败视为协议级致命错误。
func classifyDialError(err error, addr string) *errors.XError {
	var nerr net.Error
	if stderrors.As(err, &nerr) && nerr.Timeout() {
		return errors.Wrap(errors.CodeDialTimeout, "connection timed out", map[string]any{"addr": addr}, err)
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return errors.Wrap(errors.CodeDialRefused, "connection refused", map[string]any{"addr": addr}, err)
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return nil
	}
	if strings.Contains(err.Error(), "handshake failed") {
		return errors.Wrap(errors.CodeSessionFailed, "ssh handshake failed", map[string]any{"addr": addr}, err)
	}
	// 其余失败（DNS 解析、网络不可达等）不消耗重试次数。
	return errors.Wrap(errors.CodeSessionFailed, "failed to connect", map[string]any{"addr": addr}, err)
}

// NewSession 在既有连接上打开一个新的前台会话通道。
// 每次调用返回独立的 *gossh.Session，由调用方独占并负责关闭。
func (c *Client) NewSession() (*gossh.Session, error) {
	if c.client == nil {
		return nil, fmt.Errorf("ssh client not connected")
	}
	return c.client.NewSession()
}

// RFC 4254 §7.2 direct-tcpip 通道打开载荷。
type tunnelOpenMsg struct {
	DestAddr   string
	DestPort   uint32
	OriginAddr string
	OriginPort uint32
}

// OpenTunnel 打开指向 (remoteHost, remotePort) 的 direct-tcpip 通道，
// 并以 origin 标记发起端地址。返回的通道由调用方独占。
func (c *Client) OpenTunnel(remoteHost string, remotePort int, origin net.Addr) (io.ReadWriteCloser, error) {
	originHost, originPort := "127.0.0.1", 0
	if origin != nil {
		if h, p, err := net.SplitHostPort(origin.String()); err == nil {
			originHost = h
			originPort, _ = strconv.Atoi(p)
		}
	}
	if c.client == nil {
		return nil, fmt.Errorf("ssh client not connected")
	}
	msg := tunnelOpenMsg{
		DestAddr:   remoteHost,
		DestPort:   uint32(remotePort),
		OriginAddr: originHost,
		OriginPort: uint32(originPort),
	}
	ch, reqs, err := c.client.OpenChannel("direct-tcpip", gossh.Marshal(&msg))
	if err != nil {
		return nil, fmt.Errorf("open direct-tcpip channel to %s:%d: %w", remoteHost, remotePort, err)
	}
	go gossh.DiscardRequests(reqs)
	return ch, nil
}

// SendKeepalive 发送协议级 keepalive 探测并等待对端应答。
func (c *Client) SendKeepalive() error {
	if c.client == nil {
		return fmt.Errorf("ssh client not connected")
	}
	_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
	return err
}

// Close 关闭底层连接。仅 supervisor 在尝试退出路径上调用。
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
