//go:build windows

package secret

import (
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "xssh"

func (o *osKeyring) Get(key string) (string, error) {
	val, err := keyring.Get(serviceName, key)
	if err != nil {
		return "", err
	}
	// Windows cmdkey 在字符间插入 null 字节（UTF-16 遗留问题）
	val = strings.ReplaceAll(val, "\x00", "")
	return val, nil
}

func (o *osKeyring) Set(key, value string) error {
	return keyring.Set(serviceName, key, value)
}

func (o *osKeyring) Delete(key string) error {
	return keyring.Delete(serviceName, key)
}
