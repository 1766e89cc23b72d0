package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/wechaty-go/wechaty/puppet/service"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and puppet service status",
	Long:  "Display the current configuration and, when a token is set, query the puppet service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Configuration:")
		fmt.Fprintf(out, "  Puppet:   %s\n", valueOrDefault(cfg.Puppet.Kind, "service"))
		fmt.Fprintf(out, "  Endpoint: %s\n", valueOrDefault(cfg.Puppet.Endpoint, service.DefaultEndpoint))
		if cfg.Puppet.Token != "" {
			fmt.Fprintf(out, "  Token:    %s\n", maskKey(cfg.Puppet.Token))
		} else {
			fmt.Fprintln(out, "  Token:    (not set)")
		}
		fmt.Fprintf(out, "  Bot name: %s\n", valueOrDefault(cfg.Bot.Name, "(not set)"))
		if cfg.Webhook.Listen != "" {
			fmt.Fprintf(out, "  Webhook:  %s\n", cfg.Webhook.Listen)
		}

		if cfg.Puppet.Kind == "mock" || cfg.Puppet.Token == "" {
			return nil
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Live status:")
		p, err := newServicePuppet(cfg, slog.Default(), service.WithoutEventStream())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		contacts, err := p.ContactList(ctx)
		if err != nil {
			if service.IsNotFound(err) {
				fmt.Fprintln(out, "  Puppet service reachable, no account logged in")
				return nil
			}
			fmt.Fprintf(out, "  Error: %v\n", err)
			return nil
		}
		rooms, err := p.RoomList(ctx)
		if err != nil {
			fmt.Fprintf(out, "  Error: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "  Contacts: %d\n", len(contacts))
		fmt.Fprintf(out, "  Rooms:    %d\n", len(rooms))
		return nil
	},
}
