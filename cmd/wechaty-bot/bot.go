package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/wechaty-go/wechaty"
	"github.com/wechaty-go/wechaty/puppet"
)

const (
	qrcodeURL    = "https://wechaty.js.org/qrcode/"
	replyTimeout = 30 * time.Second
)

// newDingDongBot wires the ding-dong handlers onto a session over p:
// scan URLs and logins are printed to out, "ding" is answered with "dong".
func newDingDongBot(p puppet.Puppet, name string, logger *slog.Logger, out io.Writer) *wechaty.Wechaty {
	bot := wechaty.New(p, wechaty.WithName(name), wechaty.WithLogger(logger))

	bot.OnScan(func(qrcode string, status puppet.ScanStatus, data string) {
		if qrcode == "" || (status != puppet.ScanStatusWaiting && status != puppet.ScanStatusTimeout) {
			logger.Info("scan", "status", status, "data", data)
			return
		}
		fmt.Fprintf(out, "Scan QR Code to login: %d\n%s%s\n", status, qrcodeURL, url.QueryEscape(qrcode))
	})

	bot.OnLogin(func(user *wechaty.ContactSelf) {
		fmt.Fprintf(out, "%s login\n", user)
	})

	bot.OnLogout(func(user *wechaty.ContactSelf, reason string) {
		fmt.Fprintf(out, "%s logout: %s\n", user, reason)
	})

	bot.OnMessage(func(msg *wechaty.Message) {
		logger.Info("message", "message", msg.String())
		text, err := msg.Text()
		if err != nil || msg.Self() || text != "ding" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		if _, err := msg.Say(ctx, wechaty.Text("dong")); err != nil {
			logger.Error("reply failed", "message", msg.ID(), "error", err)
			return
		}
		logger.Info("replied dong", "message", msg.ID())
	})

	bot.OnHeartbeat(func(data string) {
		logger.Debug("heartbeat", "data", data)
	})

	bot.OnError(func(err error) {
		logger.Error("bot error", "error", err)
	})

	return bot
}
