package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wechaty-go/wechaty/puppet"
)

// SignatureHeader carries the HMAC-SHA256 signature of a webhook body.
const SignatureHeader = "X-Wechaty-Signature"

// maxWebhookBody bounds one webhook request body.
const maxWebhookBody = 1 << 20

// Sign returns the "sha256=<hex>" signature of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 webhook signature in constant time.
// The "sha256=" prefix is optional.
func VerifySignature(body []byte, signature, secret string) bool {
	if len(body) == 0 || signature == "" || secret == "" {
		return false
	}
	sig := strings.TrimPrefix(signature, "sha256=")
	if sig == "" {
		return false
	}
	expected := strings.TrimPrefix(Sign(body, secret), "sha256=")
	if len(sig) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

// ParseWebhookEvent decodes a webhook body into a puppet event.
func ParseWebhookEvent(body []byte) (puppet.Event, error) {
	var e puppet.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return puppet.Event{}, fmt.Errorf("puppet service: invalid webhook body: %w", err)
	}
	if e.Name == "" {
		return puppet.Event{}, fmt.Errorf("puppet service: missing event field in webhook body")
	}
	return e, nil
}

// WebhookHandler returns an http.Handler that verifies signed event
// deliveries and dispatches them like stream events. Use it together with
// WithoutEventStream when the service pushes events over HTTP.
//
//	p := service.New(endpoint, token, service.WithoutEventStream())
//	http.Handle("/webhook", p.WebhookHandler(secret))
func (p *Puppet) WebhookHandler(secret string) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(rw, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}
		defer r.Body.Close()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
			return
		}
		if !VerifySignature(body, r.Header.Get(SignatureHeader), secret) {
			p.logger.Warn("puppet service: rejected webhook", "remote", r.RemoteAddr)
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
			return
		}
		e, err := ParseWebhookEvent(body)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		p.dispatch(e)
		writeJSON(rw, http.StatusOK, map[string]bool{"ok": true})
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}
