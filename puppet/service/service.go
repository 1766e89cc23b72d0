// Package service implements puppet.Puppet against a remote puppet service.
//
// Calls are JSON over HTTP; inbound events arrive over a WebSocket stream
// with automatic reconnect and heartbeat, or through a signed webhook.
//
// Example:
//
//	p := service.New("https://puppet.example.com", token,
//		service.WithLogger(logger),
//		service.WithHeartbeatInterval(15*time.Second),
//	)
//	bot := wechaty.New(p)
//	bot.Start(ctx)
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wechaty-go/wechaty/puppet"
)

const (
	DefaultEndpoint = "http://127.0.0.1:8788"
	DefaultTimeout  = 30 * time.Second
)

// ============================================================================
// Puppet
// ============================================================================

// Puppet talks to a remote puppet service.
type Puppet struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	stream     streamConfig

	mu      sync.RWMutex
	selfID  string
	handler puppet.EventHandler
	events  *eventStream
	started bool

	// dispatchMu serializes handler calls from the stream and the webhook.
	dispatchMu sync.Mutex
}

var _ puppet.Puppet = (*Puppet)(nil)

type Option func(*Puppet)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Puppet) { p.httpClient = client }
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *Puppet) { p.httpClient.Timeout = timeout }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Puppet) { p.logger = logger }
}

// WithAutoReconnect toggles reconnecting the event stream after it drops.
// Enabled by default.
func WithAutoReconnect(enabled bool) Option {
	return func(p *Puppet) { p.stream.autoReconnect = enabled }
}

// WithReconnectDelay sets the base and maximum reconnect backoff.
func WithReconnectDelay(base, max time.Duration) Option {
	return func(p *Puppet) {
		p.stream.baseDelay = base
		p.stream.maxDelay = max
	}
}

// WithMaxReconnectAttempts caps reconnect attempts; 0 means unlimited.
func WithMaxReconnectAttempts(n int) Option {
	return func(p *Puppet) { p.stream.maxAttempts = n }
}

// WithHeartbeatInterval sets how often the stream is pinged. A heartbeat
// that is not answered within timeout closes the connection.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(p *Puppet) { p.stream.heartbeatInterval = interval }
}

func WithHeartbeatTimeout(timeout time.Duration) Option {
	return func(p *Puppet) { p.stream.heartbeatTimeout = timeout }
}

// WithoutEventStream disables the WebSocket stream. Events must then be
// delivered through WebhookHandler.
func WithoutEventStream() Option {
	return func(p *Puppet) { p.stream.disabled = true }
}

// New creates a Puppet for the service at endpoint.
func New(endpoint, token string, opts ...Option) *Puppet {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	p := &Puppet{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
		stream: streamConfig{autoReconnect: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stream.defaults()
	return p
}

// Endpoint returns the service base URL.
func (p *Puppet) Endpoint() string { return p.endpoint }

// ============================================================================
// Lifecycle
// ============================================================================

// Start registers handler and opens the event stream. The stream outlives
// ctx; it is closed by Stop.
func (p *Puppet) Start(ctx context.Context, handler puppet.EventHandler) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("puppet service: already started")
	}
	p.started = true
	p.handler = handler
	p.mu.Unlock()

	if p.stream.disabled {
		p.logger.Info("puppet service: started without event stream", "endpoint", p.endpoint)
		return nil
	}

	events := newEventStream(p)
	if err := events.connect(ctx); err != nil {
		p.mu.Lock()
		p.started = false
		p.handler = nil
		p.mu.Unlock()
		return err
	}
	p.mu.Lock()
	p.events = events
	p.mu.Unlock()
	p.logger.Info("puppet service: event stream connected", "endpoint", p.endpoint)
	return nil
}

// Stop closes the event stream and drops the handler.
func (p *Puppet) Stop(ctx context.Context) error {
	p.mu.Lock()
	events := p.events
	p.events = nil
	p.handler = nil
	p.started = false
	p.mu.Unlock()

	if events != nil {
		events.close()
	}
	return nil
}

// StreamState returns the event stream connection state.
func (p *Puppet) StreamState() State {
	p.mu.RLock()
	events := p.events
	p.mu.RUnlock()
	if events == nil {
		return StateDisconnected
	}
	return events.State()
}

// SelfID returns the logged-in contact id, tracked from login and logout
// events.
func (p *Puppet) SelfID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selfID
}

// dispatch tracks the login state and hands e to the registered handler.
func (p *Puppet) dispatch(e puppet.Event) {
	switch strings.ToLower(e.Name) {
	case puppet.EventLogin:
		if payload, err := puppet.DecodeEvent[puppet.EventLoginPayload](e); err == nil {
			p.mu.Lock()
			p.selfID = payload.ContactID
			p.mu.Unlock()
		}
	case puppet.EventLogout:
		p.mu.Lock()
		p.selfID = ""
		p.mu.Unlock()
	}

	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()
	if handler == nil {
		return
	}

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	handler(e)
}

// ============================================================================
// Internal request helper
// ============================================================================

// result is the response envelope of every call.
type result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

func (p *Puppet) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("puppet service: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("puppet service: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("puppet service: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("puppet service: read response: %w", err)
	}

	var res result
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("puppet service: unmarshal response: %w", err)
		}
	}
	if resp.StatusCode >= 400 || (len(data) > 0 && !res.OK) {
		apiErr := res.Error
		if apiErr == nil {
			apiErr = &APIError{Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(data))}
		}
		apiErr.StatusCode = resp.StatusCode
		p.logger.Debug("puppet service: call failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"status", resp.StatusCode,
			"code", apiErr.Code,
		)
		return nil, apiErr
	}
	return res.Data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return &out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("puppet service: unmarshal data: %w", err)
	}
	return &out, nil
}

func call[T any](ctx context.Context, p *Puppet, method, path string, body any) (*T, error) {
	data, err := p.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[T](data)
}

func (p *Puppet) exec(ctx context.Context, method, path string, body any) error {
	_, err := p.doRequest(ctx, method, path, body)
	return err
}

func escape(id string) string { return url.PathEscape(id) }

// ============================================================================
// puppet.Puppet: account
// ============================================================================

func (p *Puppet) Logout(ctx context.Context) error {
	return p.exec(ctx, http.MethodPost, "/api/v1/logout", nil)
}

func (p *Puppet) Ding(ctx context.Context, data string) error {
	return p.exec(ctx, http.MethodPost, "/api/v1/ding", map[string]string{"data": data})
}

func (p *Puppet) DirtyPayload(ctx context.Context, kind puppet.PayloadType, id string) error {
	return p.exec(ctx, http.MethodPost, "/api/v1/dirty", puppet.EventDirtyPayload{PayloadType: kind, PayloadID: id})
}

// ============================================================================
// puppet.Puppet: contacts
// ============================================================================

func (p *Puppet) ContactPayload(ctx context.Context, contactID string) (*puppet.ContactPayload, error) {
	return call[puppet.ContactPayload](ctx, p, http.MethodGet, "/api/v1/contacts/"+escape(contactID), nil)
}

func (p *Puppet) ContactAlias(ctx context.Context, contactID, alias string) error {
	return p.exec(ctx, http.MethodPut, "/api/v1/contacts/"+escape(contactID)+"/alias", map[string]string{"alias": alias})
}

func (p *Puppet) ContactAvatar(ctx context.Context, contactID string) (*puppet.FileBox, error) {
	return call[puppet.FileBox](ctx, p, http.MethodGet, "/api/v1/contacts/"+escape(contactID)+"/avatar", nil)
}

func (p *Puppet) ContactList(ctx context.Context) ([]string, error) {
	ids, err := call[[]string](ctx, p, http.MethodGet, "/api/v1/contacts", nil)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (p *Puppet) TagContactList(ctx context.Context, contactID string) ([]string, error) {
	ids, err := call[[]string](ctx, p, http.MethodGet, "/api/v1/contacts/"+escape(contactID)+"/tags", nil)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

// ============================================================================
// puppet.Puppet: rooms
// ============================================================================

func (p *Puppet) RoomPayload(ctx context.Context, roomID string) (*puppet.RoomPayload, error) {
	return call[puppet.RoomPayload](ctx, p, http.MethodGet, "/api/v1/rooms/"+escape(roomID), nil)
}

func (p *Puppet) RoomList(ctx context.Context) ([]string, error) {
	ids, err := call[[]string](ctx, p, http.MethodGet, "/api/v1/rooms", nil)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (p *Puppet) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	ids, err := call[[]string](ctx, p, http.MethodGet, "/api/v1/rooms/"+escape(roomID)+"/members", nil)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (p *Puppet) RoomTopic(ctx context.Context, roomID, topic string) error {
	return p.exec(ctx, http.MethodPut, "/api/v1/rooms/"+escape(roomID)+"/topic", map[string]string{"topic": topic})
}

// ============================================================================
// puppet.Puppet: messages
// ============================================================================

func (p *Puppet) MessagePayload(ctx context.Context, messageID string) (*puppet.MessagePayload, error) {
	return call[puppet.MessagePayload](ctx, p, http.MethodGet, "/api/v1/messages/"+escape(messageID), nil)
}

// sendRequest is the body of a send call. Exactly one content field is set,
// matching Type.
type sendRequest struct {
	Type        string                     `json:"type"`
	Text        string                     `json:"text,omitempty"`
	MentionIDs  []string                   `json:"mention_ids,omitempty"`
	ContactID   string                     `json:"contact_id,omitempty"`
	File        *puppet.FileBox            `json:"file,omitempty"`
	URLLink     *puppet.UrlLinkPayload     `json:"url_link,omitempty"`
	MiniProgram *puppet.MiniProgramPayload `json:"mini_program,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (p *Puppet) send(ctx context.Context, conversationID string, req *sendRequest) (string, error) {
	res, err := call[sendResponse](ctx, p, http.MethodPost, "/api/v1/conversations/"+escape(conversationID)+"/messages", req)
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

func (p *Puppet) MessageSendText(ctx context.Context, conversationID, text string, mentionIDs ...string) (string, error) {
	return p.send(ctx, conversationID, &sendRequest{Type: "text", Text: text, MentionIDs: mentionIDs})
}

func (p *Puppet) MessageSendContact(ctx context.Context, conversationID, contactID string) (string, error) {
	return p.send(ctx, conversationID, &sendRequest{Type: "contact", ContactID: contactID})
}

func (p *Puppet) MessageSendFile(ctx context.Context, conversationID string, file *puppet.FileBox) (string, error) {
	return p.send(ctx, conversationID, &sendRequest{Type: "file", File: file})
}

func (p *Puppet) MessageSendURL(ctx context.Context, conversationID string, link puppet.UrlLinkPayload) (string, error) {
	return p.send(ctx, conversationID, &sendRequest{Type: "url", URLLink: &link})
}

func (p *Puppet) MessageSendMiniProgram(ctx context.Context, conversationID string, program puppet.MiniProgramPayload) (string, error) {
	return p.send(ctx, conversationID, &sendRequest{Type: "mini_program", MiniProgram: &program})
}
