package ssh

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/zx06/xssh/internal/errors"
)

// TrustStore 实现 TOFU 主机校验：已知主机放行，未知主机确认后记录，
// 密钥不符一律致命。非默认端口的主机以 [host]:port 形式入库。
type TrustStore struct {
	path        string
	in          io.Reader
	out         io.Writer // 提示与警告（stderr）
	interactive bool
	logger      *slog.Logger

	mu       sync.Mutex
	accepted map[string]string // 本进程内已接受的 host → fingerprint
	failure  *errors.XError    // 最终信任裁决；一旦记录不可降级
}

// NewTrustStore 创建 path 指向的 known_hosts 信任库。
// 文件不存在视为空库。interactive 决定未知主机时是否提示确认。
func NewTrustStore(path string, in io.Reader, out io.Writer, interactive bool, logger *slog.Logger) *TrustStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TrustStore{
		path:        path,
		in:          in,
		out:         out,
		interactive: interactive,
		logger:      logger,
		accepted:    map[string]string{},
	}
}

// Failure 返回本次进程内已做出的致命信任裁决（若有）。
// 传输层会把 callback 错误包进握手错误里，调用方据此还原原始裁决。
func (t *TrustStore) Failure() *errors.XError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func (t *TrustStore) fail(xe *errors.XError) *errors.XError {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		t.failure = xe
	}
	return t.failure
}

// Callback 构建握手期使用的 host key 校验回调。
func (t *TrustStore) Callback() (gossh.HostKeyCallback, *errors.XError) {
	if err := ensureFile(t.path); err != nil {
		return nil, errors.Wrap(errors.CodeCfgInvalid, "failed to create known_hosts file", map[string]any{"path": t.path}, err)
	}
	db, err := knownhosts.New(t.path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeCfgInvalid, "failed to parse known_hosts", map[string]any{"path": t.path}, err)
	}

	return func(host string, remote net.Addr, key gossh.PublicKey) error {
		// 裁决一经记录即为最终：后续握手一律直接拒绝。
		if xe := t.Failure(); xe != nil {
			return xe
		}
		err := db(host, remote, key)
		if err == nil {
			return nil // MATCH
		}
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) {
			if len(keyErr.Want) > 0 {
				return t.rejectMismatch(host, key)
			}
			return t.acceptUnknown(host, key)
		}
		return t.fail(errors.Wrap(errors.CodeHostKeyMismatch, "host key verification failed", map[string]any{"host": host}, err))
	}, nil
}

// rejectMismatch：库中已有该主机但密钥不符。无任何确认路径，一律致命。
func (t *TrustStore) rejectMismatch(host string, key gossh.PublicKey) error {
	canonical := knownhosts.Normalize(host)
	fmt.Fprintf(t.out, "@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@\r\n"+
		"@    WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED!     @\r\n"+
		"@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@\r\n"+
		"The %s key sent by %s does not match the entry in %s.\r\n"+
		"Key fingerprint: %s\r\n",
		key.Type(), canonical, t.path, gossh.FingerprintSHA256(key))
	return t.fail(errors.New(errors.CodeHostKeyMismatch, "remote host identification has changed", map[string]any{
		"host":        canonical,
		"fingerprint": gossh.FingerprintSHA256(key),
	}))
}

// acceptUnknown：TOFU 路径。交互式时须明确回答 yes/y，否则按
// accept-new 语义自动接受并告警。接受后追加入库；持久化失败仅告警，
// 本进程内的信任裁决已然成立。
func (t *TrustStore) acceptUnknown(host string, key gossh.PublicKey) error {
	canonical := knownhosts.Normalize(host)
	fingerprint := gossh.FingerprintSHA256(key)

	t.mu.Lock()
	prev, seen := t.accepted[canonical]
	t.mu.Unlock()
	if seen {
		if prev == fingerprint {
			return nil // 本进程内已接受过（同一次连接的多轮握手）
		}
		// 库快照看不到刚追加的条目；接受过的主机换了密钥同样是 MISMATCH。
		return t.rejectMismatch(host, key)
	}

	if t.interactive {
		fmt.Fprintf(t.out, "The authenticity of host '%s' can't be established.\r\n"+
			"%s key fingerprint is %s.\r\n"+
			"Are you sure you want to continue connecting (yes/no)? ",
			canonical, key.Type(), fingerprint)
		answer := ""
		scanner := bufio.NewScanner(t.in)
		if scanner.Scan() {
			answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
		if answer != "yes" && answer != "y" {
			return t.fail(errors.New(errors.CodeHostKeyDeclined, "host key not trusted", map[string]any{
				"host":        canonical,
				"fingerprint": fingerprint,
			}))
		}
	} else {
		fmt.Fprintf(t.out, "Warning: Permanently added '%s' (%s) to the list of known hosts.\r\n", canonical, key.Type())
	}

	t.mu.Lock()
	t.accepted[canonical] = fingerprint
	t.mu.Unlock()

	if err := appendEntry(t.path, canonical, key); err != nil {
		t.logger.Warn("failed to persist known_hosts entry", "path", t.path, "host", canonical, "err", err)
		fmt.Fprintf(t.out, "Warning: failed to update %s: %v\r\n", t.path, err)
	}
	return nil
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

func appendEntry(path, canonical string, key gossh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(knownhosts.Line([]string{canonical}, key) + "\n")
	return err
}
