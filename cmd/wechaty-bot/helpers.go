package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/wechaty-go/wechaty/puppet/service"
)

// newServicePuppet creates a puppet service client from the config.
func newServicePuppet(cfg *Config, logger *slog.Logger, extra ...service.Option) (*service.Puppet, error) {
	if cfg.Puppet.Token == "" {
		return nil, fmt.Errorf("no puppet token. Run 'wechaty-bot init <token>' or set %s", envToken)
	}
	opts := []service.Option{service.WithLogger(logger)}
	if cfg.Puppet.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Puppet.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid puppet.timeout: %w", err)
		}
		opts = append(opts, service.WithTimeout(timeout))
	}
	opts = append(opts, extra...)
	return service.New(cfg.Puppet.Endpoint, cfg.Puppet.Token, opts...), nil
}

// maskKey shows the first 4 and last 4 characters of a token.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
