package config

// File 表示 xssh.yaml 的配置结构。
// 约束：配置优先级为 CLI > ENV > Config。
type File struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

type Profile struct {
	// 目标主机
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// 认证
	IdentityFile   string `yaml:"identity_file"`
	IdentitiesOnly bool   `yaml:"identities_only"` // 禁用默认私钥自动发现
	NoAgent        bool   `yaml:"no_agent"`
	KeySecret      string `yaml:"key_secret"` // 私钥内容，支持 keyring:xxx 引用

	// 主机信任
	KnownHostsFile string `yaml:"known_hosts_file"`
	SkipHostKey    bool   `yaml:"skip_host_key"` // 极不推荐

	// 会话
	ServerAliveInterval int      `yaml:"server_alive_interval"` // 秒，0=禁用
	Forwards            []string `yaml:"forwards"`              // local_port:remote_host:remote_port
	ConnectTimeout      int      `yaml:"connect_timeout"`       // 秒
	Attempts            int      `yaml:"attempts"`

	Debug bool `yaml:"debug"`
}

type Resolved struct {
	ConfigPath  string
	ProfileName string
	Profile     Profile // 完整 profile 供连接使用
}

type Options struct {
	// ConfigPath: 若非空，则只读取该文件（不存在报错）。
	ConfigPath string

	// CLI
	CLIProfile    string
	CLIProfileSet bool

	// ENV（由调用方注入，便于测试）
	EnvProfile string

	// HomeDir 用于默认路径计算（为空则自动探测）。
	HomeDir string

	// WorkDir 用于默认路径（为空则使用进程当前工作目录）。
	WorkDir string
}
