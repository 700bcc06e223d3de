package ssh

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gossh "golang.org/x/crypto/ssh"
)

// Options 包含一次连接所需的全部已解析参数。
// 由 cmd 层从 config + flags 合并产出，核心组件只读消费。
type Options struct {
	// 目标主机
	Host string
	Port int
	User string

	// 认证
	IdentityFile   string // 显式私钥路径；设置后为唯一候选
	IdentitiesOnly bool   // 禁用默认私钥自动发现
	NoAgent        bool
	KeyMaterial    string // 已解析的私钥内容（仅内存，来自 secret 层）
	AgentSock      string // SSH agent 端点；空=不可用

	// 主机信任
	KnownHostsFile string
	SkipHostKey    bool // 跳过主机校验（极不推荐！）
	Trust          *TrustStore

	ConnectTimeout time.Duration

	Logger *slog.Logger
	Banner io.Writer // 服务端 banner 输出（通常 stderr）；nil=丢弃

	// HomeDir 用于默认私钥路径计算（为空则自动探测）。
	HomeDir string

	// Dial 可注入的底层拨号实现（nil 则用 gossh.Dial），便于测试。
	Dial func(network, addr string, config *gossh.ClientConfig) (*gossh.Client, error)
}

func DefaultKnownHostsPath() string {
	return "~/.ssh/known_hosts"
}

func (o Options) homeDir() string {
	if o.HomeDir != "" {
		return o.HomeDir
	}
	hd, _ := os.UserHomeDir()
	return hd
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expandPath(p, home string) string {
	if strings.HasPrefix(p, "~/") && home != "" {
		return filepath.Join(home, p[2:])
	}
	return p
}
