package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zx06/xssh/internal/config"
	"github.com/zx06/xssh/internal/errors"
)

// NewProfileCommand creates the profile command group
func NewProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
	}

	profileCmd.AddCommand(newProfileListCommand())
	profileCmd.AddCommand(newProfileShowCommand())

	return profileCmd
}

// newProfileListCommand creates the profile list command
func newProfileListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, xe := config.LoadConfig(config.Options{
				ConfigPath: GlobalConfig.ConfigStr,
			})
			if xe != nil {
				return xe
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", cfgPath)
			names := make([]string, 0, len(cfg.Profiles))
			for name := range cfg.Profiles {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := cfg.Profiles[name]
				fmt.Fprintf(out, "  %s\t%s@%s:%d\n", name, p.User, p.Host, portOrDefault(p.Port))
			}
			return nil
		},
	}
}

// newProfileShowCommand creates the profile show command
func newProfileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show profile details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, _, xe := config.LoadConfig(config.Options{
				ConfigPath: GlobalConfig.ConfigStr,
			})
			if xe != nil {
				return xe
			}

			p, ok := cfg.Profiles[name]
			if !ok {
				return errors.New(errors.CodeCfgInvalid, "profile not found", map[string]any{"name": name})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host: %s\n", p.Host)
			fmt.Fprintf(out, "port: %d\n", portOrDefault(p.Port))
			fmt.Fprintf(out, "user: %s\n", p.User)
			if p.IdentityFile != "" {
				fmt.Fprintf(out, "identity_file: %s\n", p.IdentityFile)
			}
			if p.KeySecret != "" {
				// 不回显密钥引用指向的内容，只回显引用本身
				fmt.Fprintf(out, "key_secret: %s\n", p.KeySecret)
			}
			fmt.Fprintf(out, "identities_only: %v\n", p.IdentitiesOnly)
			fmt.Fprintf(out, "no_agent: %v\n", p.NoAgent)
			if p.KnownHostsFile != "" {
				fmt.Fprintf(out, "known_hosts_file: %s\n", p.KnownHostsFile)
			}
			fmt.Fprintf(out, "skip_host_key: %v\n", p.SkipHostKey)
			if p.ServerAliveInterval > 0 {
				fmt.Fprintf(out, "server_alive_interval: %d\n", p.ServerAliveInterval)
			}
			for _, f := range p.Forwards {
				fmt.Fprintf(out, "forward: %s\n", f)
			}
			return nil
		},
	}
}

func portOrDefault(p int) int {
	if p == 0 {
		return 22
	}
	return p
}
