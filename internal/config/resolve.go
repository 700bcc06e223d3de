package config

import (
	"github.com/zx06/xssh/internal/errors"
)

// Resolve 实现 config/profile 合并：CLI > ENV > Config。
// 返回的 Resolved 一经产出即不再修改；核心组件只读消费。
func Resolve(opts Options) (Resolved, *errors.XError) {
	cfg, cfgPath, xe := LoadConfig(opts)
	if xe != nil {
		return Resolved{}, xe
	}

	// 选择 profile：--profile > XSSH_PROFILE > profiles.default > 空
	profile := ""
	explicit := false
	if opts.CLIProfileSet {
		profile = opts.CLIProfile
		explicit = true
	} else if opts.EnvProfile != "" {
		profile = opts.EnvProfile
		explicit = true
	} else if _, ok := cfg.Profiles["default"]; ok {
		profile = "default"
	}

	var selected Profile
	if profile != "" {
		p, ok := cfg.Profiles[profile]
		if !ok && explicit {
			// 显式点名（flag 或环境变量）的 profile 不存在即报错，拦截拼写错误。
			return Resolved{}, errors.New(errors.CodeCfgInvalid, "profile not found", map[string]any{"profile": profile, "config": cfgPath})
		}
		selected = p
	}

	return Resolved{ConfigPath: cfgPath, ProfileName: profile, Profile: selected}, nil
}
