package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zx06/xssh/internal/app"
	"github.com/zx06/xssh/internal/config"
	"github.com/zx06/xssh/internal/errors"
	"github.com/zx06/xssh/internal/log"
	"github.com/zx06/xssh/internal/secret"
	"github.com/zx06/xssh/internal/session"
	"github.com/zx06/xssh/internal/ssh"
	"github.com/zx06/xssh/internal/tunnel"
)

// Config holds the resolved configuration state
type Config struct {
	ConfigStr  string
	ProfileStr string
	Resolved   config.Resolved
}

// GlobalConfig holds the global configuration state
var GlobalConfig = &Config{}

// exitStatus 是前台模式结束后要透传的进程退出码。
var exitStatus int

// connectFlags holds the root command flags
type connectFlags struct {
	Port                int
	Login               string
	Identity            string
	IdentitiesOnly      bool
	NoAgent             bool
	KeySecret           string
	KnownHosts          string
	SkipHostKey         bool
	Forwards            []string
	ServerAliveInterval int
	ConnectTimeout      int
	Attempts            int
	Debug               bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &connectFlags{}

	root := &cobra.Command{
		Use:           "xssh [user@]host [command...]",
		Short:         "Interactive SSH client with local forwarding and keepalive",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// CLI > ENV > Config
			profileSet := cmd.Flags().Changed("profile")
			configSet := cmd.Flags().Changed("config")
			if configSet && GlobalConfig.ConfigStr == "" {
				return errors.New(errors.CodeCfgInvalid, "config path is empty", nil)
			}

			r, xe := config.Resolve(config.Options{
				ConfigPath:    GlobalConfig.ConfigStr,
				CLIProfile:    GlobalConfig.ProfileStr,
				CLIProfileSet: profileSet,
				EnvProfile:    os.Getenv("XSSH_PROFILE"),
			})
			if xe != nil {
				return xe
			}
			GlobalConfig.Resolved = r
			GlobalConfig.ProfileStr = r.ProfileName
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, flags, args)
		},
	}

	root.PersistentFlags().StringVar(&GlobalConfig.ConfigStr, "config", "", "Config file path (YAML); default: ./xssh.yaml or $HOME/.config/xssh/xssh.yaml")
	root.PersistentFlags().StringVar(&GlobalConfig.ProfileStr, "profile", "", "Profile name (config: profiles.<name>)")

	root.Flags().IntVarP(&flags.Port, "port", "p", 0, "Port to connect to on the remote host")
	root.Flags().StringVarP(&flags.Login, "login", "l", "", "Login user name")
	root.Flags().StringVarP(&flags.Identity, "identity", "i", "", "Private key file for public key authentication")
	root.Flags().BoolVar(&flags.IdentitiesOnly, "identities-only", false, "Use only the explicit identity, disable key auto-discovery")
	root.Flags().BoolVar(&flags.NoAgent, "no-agent", false, "Do not use the SSH agent")
	root.Flags().StringVar(&flags.KeySecret, "key-secret", "", "Private key material reference (keyring:<name>)")
	root.Flags().StringVar(&flags.KnownHosts, "known-hosts", "", "known_hosts file path (default ~/.ssh/known_hosts)")
	root.Flags().BoolVar(&flags.SkipHostKey, "skip-host-key", false, "Skip host key verification (dangerous)")
	root.Flags().StringArrayVarP(&flags.Forwards, "forward", "L", nil, "Local forward local_port:remote_host:remote_port (repeatable)")
	root.Flags().IntVar(&flags.ServerAliveInterval, "server-alive-interval", 0, "Keepalive probe interval in seconds (0 disables)")
	root.Flags().IntVar(&flags.ConnectTimeout, "connect-timeout", 10, "Connect timeout in seconds")
	root.Flags().IntVar(&flags.Attempts, "attempts", 1, "Connection attempts before giving up")
	root.Flags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	root.AddCommand(NewVersionCommand(app.New(version, commit, date)))
	root.AddCommand(NewProfileCommand())

	return root
}

// runConnect 合并 flags 与 profile（CLI > Config），在任何网络活动
// 之前完成转发描述校验与私钥引用解析，然后交给监督循环。
func runConnect(cmd *cobra.Command, flags *connectFlags, args []string) error {
	p := GlobalConfig.Resolved.Profile

	host := p.Host
	user := p.User
	command := ""
	if len(args) > 0 {
		destUser, destHost := splitDestination(args[0])
		if destUser != "" {
			user = destUser
		}
		host = destHost
		command = strings.Join(args[1:], " ")
	}
	if host == "" {
		return errors.New(errors.CodeCfgInvalid, "no destination host (pass [user@]host or configure a profile)", nil)
	}
	if flags.Login != "" {
		user = flags.Login
	}

	port := p.Port
	if cmd.Flags().Changed("port") {
		port = flags.Port
	}
	identity := p.IdentityFile
	if flags.Identity != "" {
		identity = flags.Identity
	}
	keySecret := p.KeySecret
	if flags.KeySecret != "" {
		keySecret = flags.KeySecret
	}
	knownHosts := p.KnownHostsFile
	if flags.KnownHosts != "" {
		knownHosts = flags.KnownHosts
	}
	forwards := p.Forwards
	if len(flags.Forwards) > 0 {
		forwards = flags.Forwards
	}
	aliveInterval := p.ServerAliveInterval
	if cmd.Flags().Changed("server-alive-interval") {
		aliveInterval = flags.ServerAliveInterval
	}
	connectTimeout := p.ConnectTimeout
	if cmd.Flags().Changed("connect-timeout") || connectTimeout == 0 {
		connectTimeout = flags.ConnectTimeout
	}
	attempts := p.Attempts
	if cmd.Flags().Changed("attempts") || attempts == 0 {
		attempts = flags.Attempts
	}
	debug := flags.Debug || p.Debug

	logger := log.New(os.Stderr, debug)

	// 转发描述在连接之前校验。
	specs, xe := tunnel.ParseSpecs(forwards)
	if xe != nil {
		return xe
	}

	// 私钥引用解析；结果只存在于内存。
	keyMaterial := ""
	if keySecret != "" {
		km, xe := secret.Resolve(keySecret, secret.Options{})
		if xe != nil {
			return xe
		}
		keyMaterial = km
	}

	opts := ssh.Options{
		Host:           host,
		Port:           port,
		User:           user,
		IdentityFile:   identity,
		IdentitiesOnly: flags.IdentitiesOnly || p.IdentitiesOnly,
		NoAgent:        flags.NoAgent || p.NoAgent,
		KeyMaterial:    keyMaterial,
		AgentSock:      os.Getenv("SSH_AUTH_SOCK"),
		KnownHostsFile: knownHosts,
		SkipHostKey:    flags.SkipHostKey || p.SkipHostKey,
		ConnectTimeout: time.Duration(connectTimeout) * time.Second,
		Logger:         logger,
		Banner:         os.Stderr,
	}

	sup := &app.Supervisor{
		Opts:                opts,
		Command:             command,
		Forwards:            specs,
		Attempts:            attempts,
		ServerAliveInterval: time.Duration(aliveInterval) * time.Second,
		Term:                session.NewTerminal(os.Stdin),
		In:                  os.Stdin,
		Out:                 os.Stdout,
		ErrOut:              os.Stderr,
		Logger:              logger,
	}

	code, xe := sup.Run(context.Background())
	if xe != nil {
		return xe
	}
	exitStatus = code
	return nil
}

// splitDestination 拆分 [user@]host。
func splitDestination(dest string) (user, host string) {
	if idx := strings.Index(dest, "@"); idx > 0 {
		return dest[:idx], dest[idx+1:]
	}
	return "", dest
}
