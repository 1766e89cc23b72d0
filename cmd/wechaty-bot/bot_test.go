package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/wechaty-go/wechaty/puppet"
	"github.com/wechaty-go/wechaty/puppet/mock"
)

func TestMockDemo(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runMockDemo(context.Background(), "dingbot", logger, &out); err != nil {
		t.Fatalf("runMockDemo: %v", err)
	}

	for _, want := range []string{
		"Scan QR Code to login: 2\nhttps://wechaty.js.org/qrcode/mock%3A%2F%2Flogin",
		"ContactSelf<dingbot> login",
		"sent to friend: dong",
		"ContactSelf<dingbot> logout: logout",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDingDongBot(t *testing.T) {
	p := mock.New()
	p.AddContact(puppet.ContactPayload{ID: "bot", Name: "Bot"})
	p.AddContact(puppet.ContactPayload{ID: "c1", Name: "Alice"})
	p.AddMessage(puppet.MessagePayload{ID: "m1", Type: puppet.MessageTypeText, FromID: "c1", ToID: "bot", Text: "hello"})
	p.AddMessage(puppet.MessagePayload{ID: "m2", Type: puppet.MessageTypeText, FromID: "bot", ToID: "c1", Text: "ding"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bot := newDingDongBot(p, "Bot", logger, io.Discard)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Login("bot"); err != nil {
		t.Fatal(err)
	}

	t.Run("other text is ignored", func(t *testing.T) {
		p.EmitPayload(puppet.EventMessage, puppet.EventMessagePayload{MessageID: "m1"})
		if n := len(p.Sent()); n != 0 {
			t.Fatalf("expected no reply, got %d", n)
		}
	})

	t.Run("own ding is ignored", func(t *testing.T) {
		p.EmitPayload(puppet.EventMessage, puppet.EventMessagePayload{MessageID: "m2"})
		if n := len(p.Sent()); n != 0 {
			t.Fatalf("expected no reply, got %d", n)
		}
	})

	t.Run("non-waiting scan prints nothing", func(t *testing.T) {
		var out bytes.Buffer
		quiet := newDingDongBot(mock.New(), "q", logger, &out)
		quiet.Start(context.Background())
		quiet.Puppet().(*mock.Puppet).EmitPayload(puppet.EventScan, puppet.EventScanPayload{QRCode: "x", Status: puppet.ScanStatusScanned})
		if out.Len() != 0 {
			t.Fatalf("unexpected output: %q", out.String())
		}
	})
}
