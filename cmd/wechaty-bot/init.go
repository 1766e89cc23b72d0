package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wechaty-go/wechaty/puppet/service"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <token>",
	Short: "Store the puppet service token in ~/.wechaty/config.toml",
	Long:  "Initialize wechaty-bot by storing your puppet service token in the local configuration file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := readConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Puppet.Token = args[0]
		if cfg.Puppet.Kind == "" {
			cfg.Puppet.Kind = "service"
		}
		if cfg.Puppet.Endpoint == "" {
			cfg.Puppet.Endpoint = service.DefaultEndpoint
		}

		if err := writeConfig(path, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", path)
		return nil
	},
}
