package secret

import (
	"strings"

	"github.com/zx06/xssh/internal/errors"
)

const keyringPrefix = "keyring:"

// Options 控制 secret 解析行为。
type Options struct {
	Keyring KeyringAPI // 可注入的 keyring 实现（nil 则用默认）
}

// Resolve 解析私钥材料引用：
//  1. keyring:xxx → 从 OS keyring 读取密钥内容
//  2. 其他值原样返回（视为字面内容）
//
// 解析结果只存在于内存，绝不落盘。
func Resolve(raw string, opts Options) (string, *errors.XError) {
	if strings.HasPrefix(raw, keyringPrefix) {
		key := strings.TrimPrefix(raw, keyringPrefix)
		kr := opts.Keyring
		if kr == nil {
			kr = defaultKeyring()
		}
		val, err := kr.Get(key)
		if err != nil {
			return "", errors.Wrap(errors.CodeSecretNotFound, "failed to read secret from keyring", map[string]any{"key": key}, err)
		}
		return val, nil
	}
	return raw, nil
}

// IsKeyringRef 判断值是否为 keyring 引用。
func IsKeyringRef(s string) bool {
	return strings.HasPrefix(s, keyringPrefix)
}
