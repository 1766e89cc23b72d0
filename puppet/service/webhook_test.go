package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wechaty-go/wechaty/puppet"
)

// ============================================================================
// Test Helpers
// ============================================================================

const testSecret = "test-webhook-secret-key"

func makeTestBody(t *testing.T) []byte {
	t.Helper()
	e, err := puppet.NewEvent(puppet.EventMessage, puppet.EventMessagePayload{MessageID: "msg-001"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// webhookPuppet returns a started Puppet without an event stream and the
// channel its handler writes to.
func webhookPuppet(t *testing.T) (*Puppet, <-chan puppet.Event) {
	t.Helper()
	events := make(chan puppet.Event, 8)
	p := New("", testToken, WithoutEventStream(), WithLogger(discardLogger()))
	if err := p.Start(context.Background(), func(e puppet.Event) { events <- e }); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Stop(context.Background()) })
	return p, events
}

func postWebhook(h http.Handler, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ============================================================================
// VerifySignature
// ============================================================================

func TestVerifySignature(t *testing.T) {
	body := makeTestBody(t)

	t.Run("valid signature", func(t *testing.T) {
		if !VerifySignature(body, Sign(body, testSecret), testSecret) {
			t.Fatal("expected valid signature")
		}
	})

	t.Run("valid without prefix", func(t *testing.T) {
		sig := strings.TrimPrefix(Sign(body, testSecret), "sha256=")
		if !VerifySignature(body, sig, testSecret) {
			t.Fatal("expected valid signature without prefix")
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		if VerifySignature(body, "sha256="+strings.Repeat("0", 64), testSecret) {
			t.Fatal("expected invalid signature")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if VerifySignature(body, Sign(body, "wrong-secret"), testSecret) {
			t.Fatal("expected invalid signature with wrong secret")
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := Sign(body, testSecret)
		if VerifySignature(append(append([]byte{}, body...), "x"...), sig, testSecret) {
			t.Fatal("expected invalid for tampered body")
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if VerifySignature(nil, "sha256=abc", testSecret) {
			t.Fatal("expected false for empty body")
		}
		if VerifySignature(body, "", testSecret) {
			t.Fatal("expected false for empty signature")
		}
		if VerifySignature(body, "sha256=abc", "") {
			t.Fatal("expected false for empty secret")
		}
		if VerifySignature(body, "sha256=", testSecret) {
			t.Fatal("expected false for sha256= prefix only")
		}
	})
}

func TestParseWebhookEvent(t *testing.T) {
	e, err := ParseWebhookEvent(makeTestBody(t))
	if err != nil {
		t.Fatal(err)
	}
	payload, err := puppet.DecodeEvent[puppet.EventMessagePayload](e)
	if err != nil || payload.MessageID != "msg-001" {
		t.Fatalf("unexpected payload: %+v %v", payload, err)
	}

	if _, err := ParseWebhookEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if _, err := ParseWebhookEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("expected error for missing event")
	}
}

// ============================================================================
// WebhookHandler
// ============================================================================

func TestWebhookHandler(t *testing.T) {
	t.Run("GET returns 405", func(t *testing.T) {
		p, _ := webhookPuppet(t)
		req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
		w := httptest.NewRecorder()
		p.WebhookHandler(testSecret).ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", w.Code)
		}
	})

	t.Run("invalid signature returns 401", func(t *testing.T) {
		p, events := webhookPuppet(t)
		w := postWebhook(p.WebhookHandler(testSecret), makeTestBody(t), "sha256=bad")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if len(events) != 0 {
			t.Fatal("rejected delivery must not be dispatched")
		}
	})

	t.Run("missing signature returns 401", func(t *testing.T) {
		p, _ := webhookPuppet(t)
		w := postWebhook(p.WebhookHandler(testSecret), makeTestBody(t), "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("malformed event returns 400", func(t *testing.T) {
		p, _ := webhookPuppet(t)
		body := []byte(`{"source":"unknown"}`)
		w := postWebhook(p.WebhookHandler(testSecret), body, Sign(body, testSecret))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("valid returns 200 and dispatches", func(t *testing.T) {
		p, events := webhookPuppet(t)
		body := makeTestBody(t)
		w := postWebhook(p.WebhookHandler(testSecret), body, Sign(body, testSecret))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var result map[string]any
		json.NewDecoder(w.Body).Decode(&result)
		if result["ok"] != true {
			t.Fatal("expected ok:true")
		}
		select {
		case e := <-events:
			if e.Name != puppet.EventMessage {
				t.Fatalf("unexpected event: %s", e.Name)
			}
		default:
			t.Fatal("expected the event to be dispatched")
		}
	})

	t.Run("login tracks self", func(t *testing.T) {
		p, _ := webhookPuppet(t)
		e, _ := puppet.NewEvent(puppet.EventLogin, puppet.EventLoginPayload{ContactID: "self"})
		body, _ := json.Marshal(e)
		if w := postWebhook(p.WebhookHandler(testSecret), body, Sign(body, testSecret)); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if p.SelfID() != "self" {
			t.Fatalf("expected self id, got %q", p.SelfID())
		}
	})
}
