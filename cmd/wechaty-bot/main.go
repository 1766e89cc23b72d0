package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// Config types
// ============================================================================

// Config is the CLI configuration stored in ~/.wechaty/config.toml. A
// --config path ending in .yaml or .yml is read and written as YAML.
type Config struct {
	Puppet  ConfigPuppet  `toml:"puppet" yaml:"puppet"`
	Bot     ConfigBot     `toml:"bot" yaml:"bot"`
	Webhook ConfigWebhook `toml:"webhook" yaml:"webhook"`
}

// ConfigPuppet selects and addresses the puppet backend.
type ConfigPuppet struct {
	Kind     string `toml:"kind" yaml:"kind"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Token    string `toml:"token" yaml:"token"`
	Timeout  string `toml:"timeout" yaml:"timeout"`
}

type ConfigBot struct {
	Name string `toml:"name" yaml:"name"`
}

// ConfigWebhook enables signed event delivery over HTTP instead of the
// event stream.
type ConfigWebhook struct {
	Listen string `toml:"listen" yaml:"listen"`
	Secret string `toml:"secret" yaml:"secret"`
}

const (
	envToken    = "WECHATY_PUPPET_SERVICE_TOKEN"
	envEndpoint = "WECHATY_PUPPET_SERVICE_ENDPOINT"
)

// ============================================================================
// Config helpers
// ============================================================================

var (
	cfgFile  string
	logLevel string
)

// configPath returns --config when set, otherwise ~/.wechaty/config.toml,
// creating the directory if needed.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".wechaty")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return filepath.Join(dir, "config.toml"), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, os.Getenv)
	return cfg, nil
}

// readConfig parses path. A missing file yields a zero-value Config.
func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes cfg back to the config file.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return writeConfig(path, cfg)
}

func writeConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// applyEnv lets the environment override the puppet service address.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(envToken); v != "" {
		cfg.Puppet.Token = v
	}
	if v := getenv(envEndpoint); v != "" {
		cfg.Puppet.Endpoint = v
	}
}

// setConfigValue sets a config field using dot notation (e.g. "puppet.token").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. puppet.token)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "puppet":
		switch field {
		case "kind":
			if value != "service" && value != "mock" {
				return fmt.Errorf("puppet.kind must be service or mock, got %q", value)
			}
			cfg.Puppet.Kind = value
		case "endpoint":
			cfg.Puppet.Endpoint = value
		case "token":
			cfg.Puppet.Token = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("puppet.timeout: %w", err)
			}
			cfg.Puppet.Timeout = value
		default:
			return fmt.Errorf("unknown field %q in section [puppet]", field)
		}
	case "bot":
		switch field {
		case "name":
			cfg.Bot.Name = value
		default:
			return fmt.Errorf("unknown field %q in section [bot]", field)
		}
	case "webhook":
		switch field {
		case "listen":
			cfg.Webhook.Listen = value
		case "secret":
			cfg.Webhook.Secret = value
		default:
			return fmt.Errorf("unknown field %q in section [webhook]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: puppet, bot, webhook)", section)
	}
	return nil
}

// newLogger builds the process logger from --log-level.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "wechaty-bot",
	Short: "Wechaty bot CLI",
	Long:  "Command-line interface for wechaty.\nManage configuration, check the puppet service and run the ding-dong bot.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.wechaty/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
