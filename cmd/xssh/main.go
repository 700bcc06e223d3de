package main

import (
	"fmt"
	"os"

	"github.com/zx06/xssh/internal/errors"
)

// Build-time variables (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

// run is the main entry point
func run() int {
	root := NewRootCommand()

	if err := root.Execute(); err != nil {
		xe := errors.AsOrWrap(err)
		fmt.Fprintf(os.Stderr, "xssh: %s\n", xe.Error())
		return int(errors.ExitCodeFor(xe.Code))
	}

	// exec 模式下远端命令的退出码原样透传。
	return exitStatus
}
