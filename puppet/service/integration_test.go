//go:build integration

package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wechaty-go/wechaty"
	"github.com/wechaty-go/wechaty/puppet/service"
)

// helpers ---------------------------------------------------------------

func token(t *testing.T) string {
	t.Helper()
	tok := os.Getenv("WECHATY_PUPPET_SERVICE_TOKEN")
	if tok == "" {
		t.Fatal("WECHATY_PUPPET_SERVICE_TOKEN environment variable is required")
	}
	return tok
}

func newServicePuppet(t *testing.T) *service.Puppet {
	t.Helper()
	return service.New(os.Getenv("WECHATY_PUPPET_SERVICE_ENDPOINT"), token(t))
}

// =======================================================================
// Requires a running, logged-in puppet service.
// =======================================================================

func TestIntegration_DingDong(t *testing.T) {
	bot := wechaty.New(newServicePuppet(t), wechaty.WithName("integration"))
	dongs := make(chan string, 1)
	bot.OnDong(func(data string) { dongs <- data })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := bot.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bot.Stop(context.Background())

	if err := bot.Ding(ctx, "integration"); err != nil {
		t.Fatalf("Ding: %v", err)
	}
	select {
	case data := <-dongs:
		if data != "integration" {
			t.Fatalf("unexpected dong: %q", data)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for dong")
	}
}

func TestIntegration_ContactDirectory(t *testing.T) {
	bot := wechaty.New(newServicePuppet(t), wechaty.WithName("integration"))
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	contacts, err := bot.Contacts().FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	t.Logf("found %d contacts", len(contacts))
	for _, c := range contacts {
		if err := c.Ready(ctx, false); err != nil {
			t.Fatalf("Ready %s: %v", c.ID(), err)
		}
		// A second Ready is served from the cache.
		if err := c.Ready(ctx, false); err != nil {
			t.Fatalf("cached Ready %s: %v", c.ID(), err)
		}
	}

	rooms, err := bot.Rooms().FindAll(ctx)
	if err != nil {
		t.Fatalf("Rooms FindAll: %v", err)
	}
	for _, r := range rooms {
		if err := r.Ready(ctx, false); err != nil {
			t.Fatalf("Ready %s: %v", r.ID(), err)
		}
		t.Logf("room %s: %q", r.ID(), r.Topic())
	}
}
