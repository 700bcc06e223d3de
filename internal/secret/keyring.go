package secret

// KeyringAPI 是对 OS keyring 的最小抽象，便于测试与跨平台。
// key 对应 keyring 的 account；service name 固定为 xssh。
type KeyringAPI interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// 默认 keyring 实现（使用 zalando/go-keyring）。
// 本文件仅定义接口；实现见 keyring_*.go（按平台编译）。
func defaultKeyring() KeyringAPI {
	return &osKeyring{}
}

type osKeyring struct{}
