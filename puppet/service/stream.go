package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/wechaty-go/wechaty/puppet"
)

// ============================================================================
// Configuration
// ============================================================================

type streamConfig struct {
	disabled          bool
	autoReconnect     bool
	maxAttempts       int
	baseDelay         time.Duration
	maxDelay          time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

func (c *streamConfig) defaults() {
	if c.baseDelay == 0 {
		c.baseDelay = 1 * time.Second
	}
	if c.maxDelay == 0 {
		c.maxDelay = 30 * time.Second
	}
	if c.heartbeatInterval == 0 {
		c.heartbeatInterval = 25 * time.Second
	}
	if c.heartbeatTimeout == 0 {
		c.heartbeatTimeout = 10 * time.Second
	}
}

// State is the event stream connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// streamReadLimit bounds one inbound event frame.
const streamReadLimit = 1 << 20

// command is a client-to-service frame.
type command struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      string `json:"data,omitempty"`
}

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(cfg *streamConfig) *reconnector {
	return &reconnector{
		baseDelay:   cfg.baseDelay,
		maxDelay:    cfg.maxDelay,
		maxAttempts: cfg.maxAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

// nextDelay returns an exponential backoff with jitter. A connection that
// stayed up for a minute resets the attempt counter.
func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// ============================================================================
// Event stream
// ============================================================================

// eventStream reads puppet events from the service WebSocket and hands
// them to the Puppet one at a time.
type eventStream struct {
	p     *Puppet
	url   string
	cfg   streamConfig
	recon *reconnector

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	state  State
	closed bool
	done   chan struct{}

	pendingMu sync.Mutex
	pending   map[string]chan struct{}
}

func newEventStream(p *Puppet) *eventStream {
	wsURL := strings.Replace(p.endpoint, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return &eventStream{
		p:       p,
		url:     wsURL + "/api/v1/events",
		cfg:     p.stream,
		recon:   newReconnector(&p.stream),
		state:   StateDisconnected,
		done:    make(chan struct{}),
		pending: make(map[string]chan struct{}),
	}
}

func (s *eventStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *eventStream) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// connect dials the stream and starts the read and heartbeat loops. The
// loops run until close or until the connection drops.
func (s *eventStream) connect(ctx context.Context) error {
	s.setState(StateConnecting)

	header := http.Header{}
	if s.p.token != "" {
		header.Set("Authorization", "Bearer "+s.p.token)
	}
	// The dial is bounded by ctx; a client timeout would also cut the
	// long-lived connection.
	client := *s.p.httpClient
	client.Timeout = 0
	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		HTTPClient: &client,
		HTTPHeader: header,
	})
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("puppet service: dial event stream: %w", err)
	}
	conn.SetReadLimit(streamReadLimit)

	connCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return fmt.Errorf("puppet service: event stream closed")
	}
	s.conn = conn
	s.cancel = cancel
	s.state = StateConnected
	s.mu.Unlock()
	s.recon.markConnected()

	go s.readLoop(connCtx, cancel, conn)
	go s.heartbeatLoop(connCtx, conn)
	return nil
}

// close ends the stream for good.
func (s *eventStream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	conn, cancel := s.conn, s.cancel
	s.conn, s.cancel = nil, nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client disconnect"); err != nil {
			s.p.logger.Debug("puppet service: close event stream", "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	s.clearPending()
}

func (s *eventStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *eventStream) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if s.isClosed() {
				return
			}
			s.mu.Lock()
			if s.conn == conn {
				s.conn, s.cancel = nil, nil
				s.state = StateDisconnected
			}
			s.mu.Unlock()

			s.p.logger.Warn("puppet service: event stream dropped", "error", err)
			if s.cfg.autoReconnect {
				s.reconnect()
			}
			return
		}

		var e puppet.Event
		if err := json.Unmarshal(data, &e); err != nil {
			s.p.logger.Warn("puppet service: malformed event", "error", err)
			continue
		}
		if s.resolveHeartbeat(e) {
			continue
		}
		s.p.dispatch(e)
	}
}

// reconnect redials with backoff until it succeeds, the stream is closed or
// the attempts run out. Giving up is reported as a puppet error event.
func (s *eventStream) reconnect() {
	for s.recon.shouldReconnect() {
		delay := s.recon.nextDelay()
		s.setState(StateReconnecting)
		s.p.logger.Warn("puppet service: reconnecting",
			"attempt", s.recon.attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		dialTimeout := s.p.httpClient.Timeout
		if dialTimeout == 0 {
			dialTimeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			s.p.logger.Info("puppet service: event stream reconnected", "attempt", s.recon.attempt)
			return
		}
		if s.isClosed() {
			return
		}
		s.p.logger.Warn("puppet service: reconnect failed", "attempt", s.recon.attempt, "error", err)
	}

	s.setState(StateDisconnected)
	if e, err := puppet.NewEvent(puppet.EventError, puppet.EventErrorPayload{
		Data: fmt.Sprintf("event stream lost after %d reconnect attempts", s.recon.attempt),
	}); err == nil {
		s.p.dispatch(e)
	}
}

// ============================================================================
// Heartbeat
// ============================================================================

func (s *eventStream) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ping(ctx, conn); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.p.logger.Warn("puppet service: heartbeat failed", "error", err)
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

// ping sends a ding command and waits for the matching dong event.
func (s *eventStream) ping(ctx context.Context, conn *websocket.Conn) error {
	id := uuid.NewString()
	ch := make(chan struct{}, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(command{Type: "ding", RequestID: id, Data: id})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}

	timer := time.NewTimer(s.cfg.heartbeatTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return errHeartbeatTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveHeartbeat consumes a dong event answering one of our pings. Other
// dong events are passed on.
func (s *eventStream) resolveHeartbeat(e puppet.Event) bool {
	if !strings.EqualFold(e.Name, puppet.EventDong) {
		return false
	}
	payload, err := puppet.DecodeEvent[puppet.EventDongPayload](e)
	if err != nil {
		return false
	}
	s.pendingMu.Lock()
	ch, ok := s.pending[payload.Data]
	if ok {
		delete(s.pending, payload.Data)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- struct{}{}
	}
	return ok
}

func (s *eventStream) clearPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id := range s.pending {
		delete(s.pending, id)
	}
}
