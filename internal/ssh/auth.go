package ssh

import (
	"net"
	"os"
	"path/filepath"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/zx06/xssh/internal/errors"
)

// Credential 是认证链中的一个候选凭据。
// Fatal=true 的凭据失败时终止整条链，不回退到后续候选。
type Credential struct {
	Name   string
	Method gossh.AuthMethod
	Fatal  bool
}

// defaultKeyNames 是自动发现的私钥文件名，按固定优先级排列。
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// BuildChain 按固定优先级组装候选凭据：
//
//  1. 内存私钥（来自 secret 层）：存在即为唯一候选，失败致命——
//     显式提供密钥引用代表用户明确意图，不应静默回退。
//  2. agent 委托认证（除非 NoAgent / IdentitiesOnly / 无 agent 端点）。
//  3. 私钥文件：显式 IdentityFile 为唯一候选；否则 IdentitiesOnly 时为空，
//     否则自动发现 ~/.ssh 下的 {id_ed25519, id_rsa, id_ecdsa}。
//
// 组装阶段的候选级失败（agent 不可达、文件不存在、解析失败）记入 debug
// 日志后跳过；登录阶段的取舍由 Connect 逐候选执行。
func BuildChain(opts Options) ([]Credential, *errors.XError) {
	logger := opts.logger()

	if opts.KeyMaterial != "" {
		signer, err := gossh.ParsePrivateKey([]byte(opts.KeyMaterial))
		if err != nil {
			return nil, errors.Wrap(errors.CodeCfgInvalid, "failed to parse private key from secret store", nil, err)
		}
		return []Credential{{Name: "secret-key", Method: gossh.PublicKeys(signer), Fatal: true}}, nil
	}

	var chain []Credential

	if !opts.NoAgent && !opts.IdentitiesOnly && opts.AgentSock != "" {
		conn, err := net.Dial("unix", opts.AgentSock)
		if err != nil {
			logger.Debug("ssh agent unreachable", "sock", opts.AgentSock, "err", err)
		} else {
			ac := agent.NewClient(conn)
			chain = append(chain, Credential{Name: "agent", Method: gossh.PublicKeysCallback(ac.Signers)})
		}
	}

	for _, path := range candidateKeyPaths(opts) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		keyData, err := os.ReadFile(path)
		if err != nil {
			logger.Debug("failed to read private key", "path", path, "err", err)
			continue
		}
		signer, err := gossh.ParsePrivateKey(keyData)
		if err != nil {
			logger.Debug("failed to parse private key", "path", path, "err", err)
			continue
		}
		chain = append(chain, Credential{Name: filepath.Base(path), Method: gossh.PublicKeys(signer)})
	}

	return chain, nil
}

func candidateKeyPaths(opts Options) []string {
	home := opts.homeDir()
	if opts.IdentityFile != "" {
		return []string{expandPath(opts.IdentityFile, home)}
	}
	if opts.IdentitiesOnly {
		return nil
	}
	paths := make([]string, 0, len(defaultKeyNames))
	for _, name := range defaultKeyNames {
		paths = append(paths, filepath.Join(home, ".ssh", name))
	}
	return paths
}
