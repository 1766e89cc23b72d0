package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wechaty-go/wechaty/puppet"
	"github.com/wechaty-go/wechaty/puppet/mock"
	"github.com/wechaty-go/wechaty/puppet/service"
)

var (
	runPuppet        string
	runName          string
	runWebhookListen string
	runWebhookSecret string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPuppet, "puppet", "", "puppet backend: service or mock (default from config, else service)")
	runCmd.Flags().StringVar(&runName, "name", "", "bot name")
	runCmd.Flags().StringVar(&runWebhookListen, "webhook-listen", "", "receive events on this address instead of the event stream")
	runCmd.Flags().StringVar(&runWebhookSecret, "webhook-secret", "", "HMAC secret for webhook deliveries")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ding-dong bot",
	Long: "Run a bot that prints the login QR code URL, logs messages and answers \"ding\" with \"dong\".\n" +
		"With --puppet mock a scripted conversation runs in memory and the command exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		kind := valueOrDefault(runPuppet, valueOrDefault(cfg.Puppet.Kind, "service"))
		name := valueOrDefault(runName, valueOrDefault(cfg.Bot.Name, "ding-dong-bot"))
		listen := valueOrDefault(runWebhookListen, cfg.Webhook.Listen)
		secret := valueOrDefault(runWebhookSecret, cfg.Webhook.Secret)
		logger := slog.Default()

		switch kind {
		case "mock":
			return runMockDemo(cmd.Context(), name, logger, cmd.OutOrStdout())
		case "service":
		default:
			return fmt.Errorf("unknown puppet %q (valid: service, mock)", kind)
		}

		var extra []service.Option
		if listen != "" {
			if secret == "" {
				return fmt.Errorf("--webhook-secret is required with --webhook-listen")
			}
			extra = append(extra, service.WithoutEventStream())
		}
		p, err := newServicePuppet(cfg, logger, extra...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bot := newDingDongBot(p, name, logger, cmd.OutOrStdout())
		if err := bot.Start(ctx); err != nil {
			return err
		}
		defer bot.Stop(context.Background())

		if listen == "" {
			logger.Info("bot started", "name", name, "endpoint", p.Endpoint())
			<-ctx.Done()
			return nil
		}
		return serveWebhook(ctx, listen, p.WebhookHandler(secret), logger)
	},
}

// serveWebhook serves handler on /webhook until ctx is done.
func serveWebhook(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/webhook", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runMockDemo plays a short scripted session against the in-memory puppet:
// scan, login, an incoming "ding" and the bot's reply.
func runMockDemo(ctx context.Context, name string, logger *slog.Logger, out io.Writer) error {
	p := mock.New()
	p.AddContact(puppet.ContactPayload{ID: "bot", Name: name, Type: puppet.ContactTypeIndividual})
	p.AddContact(puppet.ContactPayload{ID: "friend", Name: "Friend", Type: puppet.ContactTypeIndividual, Friend: true})
	p.AddMessage(puppet.MessagePayload{
		ID:        "ding-1",
		Type:      puppet.MessageTypeText,
		FromID:    "friend",
		ToID:      "bot",
		Text:      "ding",
		Timestamp: time.Now().Unix(),
	})

	bot := newDingDongBot(p, name, logger, out)
	if err := bot.Start(ctx); err != nil {
		return err
	}
	defer bot.Stop(context.Background())

	steps := []func() error{
		func() error {
			return p.EmitPayload(puppet.EventScan, puppet.EventScanPayload{QRCode: "mock://login", Status: puppet.ScanStatusWaiting})
		},
		func() error { return p.Login("bot") },
		func() error {
			return p.EmitPayload(puppet.EventMessage, puppet.EventMessagePayload{MessageID: "ding-1"})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	for _, sent := range p.Sent() {
		fmt.Fprintf(out, "sent to %s: %v\n", sent.ConversationID, sent.Content)
	}
	return bot.Logout(ctx)
}
