package errors

// ExitCode 是进程退出码（稳定契约）。
// 0 = 干净退出；任何致命错误一律 1。
// exec 模式下远端命令的退出码原样透传，不经过本映射。
type ExitCode int

const (
	ExitOK      ExitCode = 0
	ExitFailure ExitCode = 1
)

func ExitCodeFor(code Code) ExitCode {
	switch code {
	case "":
		return ExitOK
	default:
		return ExitFailure
	}
}
