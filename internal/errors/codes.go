package errors

// Code 是稳定错误码（字符串），供脚本与程序判断。
// 只增不改、不复用旧含义。
type Code string

const (
	// Config / args
	CodeCfgNotFound    Code = "XSSH_CFG_NOT_FOUND"
	CodeCfgInvalid     Code = "XSSH_CFG_INVALID"
	CodeSecretNotFound Code = "XSSH_SECRET_NOT_FOUND"
	CodeForwardInvalid Code = "XSSH_FORWARD_INVALID"

	// Connect（可重试）
	CodeDialTimeout Code = "XSSH_DIAL_TIMEOUT"
	CodeDialRefused Code = "XSSH_DIAL_REFUSED"

	// Auth / trust
	CodeAuthExhausted   Code = "XSSH_AUTH_EXHAUSTED"
	CodeHostKeyMismatch Code = "XSSH_HOSTKEY_MISMATCH"
	CodeHostKeyDeclined Code = "XSSH_HOSTKEY_DECLINED"

	// Session
	CodeTunnelBindFailed   Code = "XSSH_TUNNEL_BIND_FAILED"
	CodeKeepaliveExhausted Code = "XSSH_KEEPALIVE_EXHAUSTED"
	CodeSessionFailed      Code = "XSSH_SESSION_FAILED"

	// Internal
	CodeInternal Code = "XSSH_INTERNAL"
)

func AllCodes() []Code {
	return []Code{
		CodeCfgNotFound,
		CodeCfgInvalid,
		CodeSecretNotFound,
		CodeForwardInvalid,
		CodeDialTimeout,
		CodeDialRefused,
		CodeAuthExhausted,
		CodeHostKeyMismatch,
		CodeHostKeyDeclined,
		CodeTunnelBindFailed,
		CodeKeepaliveExhausted,
		CodeSessionFailed,
		CodeInternal,
	}
}

// Retryable 报告错误码是否允许监督循环重试。
// 只有传输层的连接超时 / 连接拒绝可重试，其余一律致命。
func Retryable(code Code) bool {
	switch code {
	case CodeDialTimeout, CodeDialRefused:
		return true
	default:
		return false
	}
}
