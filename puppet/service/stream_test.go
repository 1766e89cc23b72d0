package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/wechaty-go/wechaty/puppet"
)

const waitTimeout = 3 * time.Second

// fakeService serves the event stream endpoint. Each accepted connection
// is published on conns; ding commands are answered when answerDing is set.
type fakeService struct {
	t     *testing.T
	srv   *httptest.Server
	conns chan *websocket.Conn
	dings chan string

	mu         sync.Mutex
	answerDing bool
	refuse     bool
	authHeader string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		t:          t,
		conns:      make(chan *websocket.Conn, 64),
		dings:      make(chan string, 64),
		answerDing: true,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serveEvents))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeService) serveEvents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	refuse := f.refuse
	f.authHeader = r.Header.Get("Authorization")
	f.mu.Unlock()
	if refuse || r.URL.Path != "/api/v1/events" {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.t.Errorf("accept: %v", err)
		return
	}
	f.conns <- conn

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != "ding" {
			continue
		}
		select {
		case f.dings <- cmd.Data:
		default:
		}

		f.mu.Lock()
		answer := f.answerDing
		f.mu.Unlock()
		if answer {
			writeEvent(ctx, conn, puppet.EventDong, puppet.EventDongPayload{Data: cmd.Data})
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, name string, data any) error {
	e, err := puppet.NewEvent(name, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, raw)
}

func (f *fakeService) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

// startStream starts a Puppet against f and returns a channel of the
// events it hands to its handler.
func startStream(t *testing.T, f *fakeService, opts ...Option) (*Puppet, <-chan puppet.Event) {
	t.Helper()
	events := make(chan puppet.Event, 64)
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	p := New(f.srv.URL, testToken, opts...)
	if err := p.Start(context.Background(), func(e puppet.Event) { events <- e }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { p.Stop(context.Background()) })
	return p, events
}

func nextEvent(t *testing.T, events <-chan puppet.Event) puppet.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an event")
		return puppet.Event{}
	}
}

func TestEventStream(t *testing.T) {
	f := newFakeService(t)
	p, events := startStream(t, f)
	conn := f.nextConn(t)
	ctx := context.Background()

	if p.StreamState() != StateConnected {
		t.Fatalf("unexpected state: %s", p.StreamState())
	}
	f.set(func(f *fakeService) {
		if f.authHeader != "Bearer "+testToken {
			t.Errorf("unexpected auth header: %q", f.authHeader)
		}
	})

	if err := writeEvent(ctx, conn, puppet.EventLogin, puppet.EventLoginPayload{ContactID: "self"}); err != nil {
		t.Fatal(err)
	}
	e := nextEvent(t, events)
	if e.Name != puppet.EventLogin {
		t.Fatalf("unexpected event: %s", e.Name)
	}
	if p.SelfID() != "self" {
		t.Fatalf("expected self id to be tracked, got %q", p.SelfID())
	}

	t.Run("events keep their order", func(t *testing.T) {
		for _, id := range []string{"m1", "m2", "m3"} {
			if err := writeEvent(ctx, conn, puppet.EventMessage, puppet.EventMessagePayload{MessageID: id}); err != nil {
				t.Fatal(err)
			}
		}
		for _, want := range []string{"m1", "m2", "m3"} {
			got, err := puppet.DecodeEvent[puppet.EventMessagePayload](nextEvent(t, events))
			if err != nil || got.MessageID != want {
				t.Fatalf("expected %s, got %+v %v", want, got, err)
			}
		}
	})

	t.Run("malformed frames are skipped", func(t *testing.T) {
		if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
			t.Fatal(err)
		}
		if err := writeEvent(ctx, conn, puppet.EventReady, nil); err != nil {
			t.Fatal(err)
		}
		if e := nextEvent(t, events); e.Name != puppet.EventReady {
			t.Fatalf("unexpected event: %s", e.Name)
		}
	})

	t.Run("logout clears self", func(t *testing.T) {
		if err := writeEvent(ctx, conn, puppet.EventLogout, puppet.EventLogoutPayload{ContactID: "self"}); err != nil {
			t.Fatal(err)
		}
		nextEvent(t, events)
		if p.SelfID() != "" {
			t.Fatalf("expected empty self id, got %q", p.SelfID())
		}
	})
}

func TestHeartbeat(t *testing.T) {
	f := newFakeService(t)
	_, events := startStream(t, f, WithHeartbeatInterval(20*time.Millisecond))
	conn := f.nextConn(t)

	for i := 0; i < 3; i++ {
		select {
		case <-f.dings:
		case <-time.After(waitTimeout):
			t.Fatal("timed out waiting for a heartbeat")
		}
	}

	// Answered heartbeats never reach the handler; an unrelated dong does.
	if err := writeEvent(context.Background(), conn, puppet.EventDong, puppet.EventDongPayload{Data: "user"}); err != nil {
		t.Fatal(err)
	}
	e := nextEvent(t, events)
	payload, err := puppet.DecodeEvent[puppet.EventDongPayload](e)
	if err != nil || payload.Data != "user" {
		t.Fatalf("expected the user dong, got %s %+v", e.Name, payload)
	}
}

func TestReconnect(t *testing.T) {
	t.Run("after server close", func(t *testing.T) {
		f := newFakeService(t)
		_, events := startStream(t, f, WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond))
		first := f.nextConn(t)
		first.Close(websocket.StatusGoingAway, "restart")

		second := f.nextConn(t)
		if err := writeEvent(context.Background(), second, puppet.EventReady, nil); err != nil {
			t.Fatal(err)
		}
		if e := nextEvent(t, events); e.Name != puppet.EventReady {
			t.Fatalf("unexpected event: %s", e.Name)
		}
	})

	t.Run("after heartbeat timeout", func(t *testing.T) {
		f := newFakeService(t)
		f.set(func(f *fakeService) { f.answerDing = false })
		startStream(t, f,
			WithHeartbeatInterval(20*time.Millisecond),
			WithHeartbeatTimeout(20*time.Millisecond),
			WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond),
		)
		f.nextConn(t)
		f.nextConn(t)
	})

	t.Run("gives up", func(t *testing.T) {
		f := newFakeService(t)
		p, events := startStream(t, f,
			WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond),
			WithMaxReconnectAttempts(2),
		)
		conn := f.nextConn(t)
		f.set(func(f *fakeService) { f.refuse = true })
		conn.Close(websocket.StatusGoingAway, "shutdown")

		e := nextEvent(t, events)
		if e.Name != puppet.EventError {
			t.Fatalf("expected error event, got %s", e.Name)
		}
		payload, err := puppet.DecodeEvent[puppet.EventErrorPayload](e)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(payload.Data, "event stream lost") {
			t.Fatalf("unexpected error: %q", payload.Data)
		}
		if p.StreamState() != StateDisconnected {
			t.Fatalf("unexpected state: %s", p.StreamState())
		}
	})

	t.Run("not after stop", func(t *testing.T) {
		f := newFakeService(t)
		p, _ := startStream(t, f, WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond))
		f.nextConn(t)
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		select {
		case <-f.conns:
			t.Fatal("unexpected reconnect after Stop")
		case <-time.After(200 * time.Millisecond):
		}
		if p.StreamState() != StateDisconnected {
			t.Fatalf("unexpected state: %s", p.StreamState())
		}
	})
}

func TestStartDialFailure(t *testing.T) {
	f := newFakeService(t)
	f.set(func(f *fakeService) { f.refuse = true })
	p := New(f.srv.URL, testToken, WithLogger(discardLogger()))
	if err := p.Start(context.Background(), func(puppet.Event) {}); err == nil {
		t.Fatal("expected dial error")
	}
	// A failed Start can be retried.
	f.set(func(f *fakeService) { f.refuse = false })
	if err := p.Start(context.Background(), func(puppet.Event) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Stop(context.Background())
}
