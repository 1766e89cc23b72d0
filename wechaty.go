// Package wechaty is a chat-account client driven through a puppet backend.
//
// A Wechaty session owns one event bus and one identity map per entity
// kind. Inbound puppet events are translated into cache invalidations and
// domain events; handles (Contact, Room, Message, ...) fetch their payloads
// lazily and refetch after invalidation.
//
// Usage:
//
//	bot := wechaty.New(p, wechaty.WithName("ding-dong"))
//	bot.OnMessage(func(msg *wechaty.Message) {
//	    if text, _ := msg.Text(); text == "ding" {
//	        msg.Say(ctx, wechaty.Text("dong"))
//	    }
//	})
//	if err := bot.Start(ctx); err != nil { ... }
package wechaty

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wechaty-go/wechaty/emitter"
	"github.com/wechaty-go/wechaty/puppet"
)

// Domain event names emitted on the session bus.
const (
	EventScan      = "scan"
	EventLogin     = "login"
	EventLogout    = "logout"
	EventMessage   = "message"
	EventHeartbeat = "heartbeat"
	EventError     = "error"
	EventReady     = "ready"
	EventReset     = "reset"
	EventDong      = "dong"
	EventDirty     = "dirty"
	EventRoomJoin  = "room-join"
	EventRoomLeave = "room-leave"
	EventRoomTopic = "room-topic"
)

// Wechaty is one chat session over a puppet.
type Wechaty struct {
	name   string
	puppet puppet.Puppet
	logger *slog.Logger
	bus    *emitter.Emitter

	contacts      *ContactManager
	contactSelves *ContactSelfManager
	rooms         *RoomManager
	messages      *MessageManager
	tags          *TagManager

	mu       sync.Mutex
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	userSelf *ContactSelf
}

// Option configures a Wechaty.
type Option func(*Wechaty)

// WithName sets the session name used in log lines.
func WithName(name string) Option {
	return func(w *Wechaty) {
		w.name = name
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wechaty) {
		w.logger = logger
	}
}

// New creates a session over p. Call Start to begin receiving events.
func New(p puppet.Puppet, opts ...Option) *Wechaty {
	w := &Wechaty{
		name:   "wechaty",
		puppet: p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("session", w.name)
	w.bus = emitter.New(emitter.WithLogger(w.logger))

	w.contacts = &ContactManager{
		manager: newManager(func(id string) *Contact { return newContact(w, id) }),
		wechaty: w,
	}
	w.contactSelves = &ContactSelfManager{
		manager: newManager(func(id string) *ContactSelf { return newContactSelf(w, id) }),
	}
	w.rooms = &RoomManager{
		manager: newManager(func(id string) *Room { return newRoom(w, id) }),
		wechaty: w,
	}
	w.messages = &MessageManager{
		manager: newManager(func(id string) *Message { return newMessage(w, id) }),
	}
	w.tags = &TagManager{
		manager: newManager(func(id string) *Tag { return newTag(w, id) }),
	}
	return w
}

func (w *Wechaty) Name() string { return w.name }

func (w *Wechaty) Puppet() puppet.Puppet { return w.puppet }

// Contacts returns the Contact identity map.
func (w *Wechaty) Contacts() *ContactManager { return w.contacts }

// ContactSelves returns the ContactSelf identity map.
func (w *Wechaty) ContactSelves() *ContactSelfManager { return w.contactSelves }

func (w *Wechaty) Rooms() *RoomManager { return w.rooms }

func (w *Wechaty) Messages() *MessageManager { return w.messages }

func (w *Wechaty) Tags() *TagManager { return w.tags }

// ============================================================================
// Lifecycle
// ============================================================================

// Start subscribes to the puppet event stream. Calling Start on a started
// session is a no-op.
func (w *Wechaty) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.started = true
	w.mu.Unlock()

	w.logger.Info("wechaty: starting")
	if err := w.puppet.Start(ctx, w.handlePuppetEvent); err != nil {
		w.mu.Lock()
		w.started = false
		w.cancel()
		w.mu.Unlock()
		return &RemoteError{Op: "Start", Err: err}
	}
	return nil
}

// Stop detaches from the puppet. Hydrations still in flight are cancelled.
func (w *Wechaty) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	w.cancel()
	w.mu.Unlock()

	w.logger.Info("wechaty: stopping")
	if err := w.puppet.Stop(ctx); err != nil {
		return &RemoteError{Op: "Stop", Err: err}
	}
	return nil
}

// Logout logs the current account out.
func (w *Wechaty) Logout(ctx context.Context) error {
	if err := w.puppet.Logout(ctx); err != nil {
		return &RemoteError{Op: "Logout", Kind: puppet.PayloadContact, ID: w.puppet.SelfID(), Err: err}
	}
	return nil
}

// Ding asks the puppet to answer with a dong event carrying data.
func (w *Wechaty) Ding(ctx context.Context, data string) error {
	if err := w.puppet.Ding(ctx, data); err != nil {
		return &RemoteError{Op: "Ding", Err: err}
	}
	return nil
}

// UserSelf returns the logged-in account, or nil when logged out.
func (w *Wechaty) UserSelf() *ContactSelf {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.userSelf
}

func (w *Wechaty) IsLoggedIn() bool {
	return w.UserSelf() != nil
}

func (w *Wechaty) eventContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

// ============================================================================
// Event bus
// ============================================================================

// On registers a listener for name. Names may contain * and ? wildcards;
// wildcard listeners receive the emitted name as their last argument.
func (w *Wechaty) On(name string, listener emitter.Listener) emitter.ID {
	return w.bus.On(name, listener)
}

func (w *Wechaty) OnNames(names []string, listener emitter.Listener) emitter.ID {
	return w.bus.OnNames(names, listener)
}

func (w *Wechaty) Once(name string, listener emitter.Listener) emitter.ID {
	return w.bus.Once(name, listener)
}

func (w *Wechaty) Many(name string, times int, listener emitter.Listener) emitter.ID {
	return w.bus.Many(name, times, listener)
}

func (w *Wechaty) Off(name string, id emitter.ID) bool {
	return w.bus.Off(name, id)
}

func (w *Wechaty) RemoveListener(id emitter.ID) {
	w.bus.RemoveListener(id)
}

func (w *Wechaty) RemoveAllListeners(names ...string) {
	w.bus.RemoveAllListeners(names...)
}

// arg returns args[i] as a T, or the zero T.
func arg[T any](args []any, i int) T {
	var zero T
	if i >= len(args) {
		return zero
	}
	v, ok := args[i].(T)
	if !ok {
		return zero
	}
	return v
}

func (w *Wechaty) OnScan(fn func(qrcode string, status puppet.ScanStatus, data string)) emitter.ID {
	return w.bus.On(EventScan, func(args ...any) {
		fn(arg[string](args, 0), arg[puppet.ScanStatus](args, 1), arg[string](args, 2))
	})
}

func (w *Wechaty) OnLogin(fn func(user *ContactSelf)) emitter.ID {
	return w.bus.On(EventLogin, func(args ...any) {
		fn(arg[*ContactSelf](args, 0))
	})
}

func (w *Wechaty) OnLogout(fn func(user *ContactSelf, reason string)) emitter.ID {
	return w.bus.On(EventLogout, func(args ...any) {
		fn(arg[*ContactSelf](args, 0), arg[string](args, 1))
	})
}

func (w *Wechaty) OnMessage(fn func(msg *Message)) emitter.ID {
	return w.bus.On(EventMessage, func(args ...any) {
		fn(arg[*Message](args, 0))
	})
}

func (w *Wechaty) OnHeartbeat(fn func(data string)) emitter.ID {
	return w.bus.On(EventHeartbeat, func(args ...any) {
		fn(arg[string](args, 0))
	})
}

// OnError receives puppet-reported errors and *IdentityError values for
// events that could not be hydrated.
func (w *Wechaty) OnError(fn func(err error)) emitter.ID {
	return w.bus.On(EventError, func(args ...any) {
		fn(arg[error](args, 0))
	})
}

func (w *Wechaty) OnReady(fn func()) emitter.ID {
	return w.bus.On(EventReady, func(args ...any) {
		fn()
	})
}

func (w *Wechaty) OnDong(fn func(data string)) emitter.ID {
	return w.bus.On(EventDong, func(args ...any) {
		fn(arg[string](args, 0))
	})
}

// OnDirty fires after a payload has been marked stale.
func (w *Wechaty) OnDirty(fn func(kind puppet.PayloadType, id string)) emitter.ID {
	return w.bus.On(EventDirty, func(args ...any) {
		fn(arg[puppet.PayloadType](args, 0), arg[string](args, 1))
	})
}

func (w *Wechaty) OnRoomJoin(fn func(room *Room, invitees []*Contact, inviter *Contact)) emitter.ID {
	return w.bus.On(EventRoomJoin, func(args ...any) {
		fn(arg[*Room](args, 0), arg[[]*Contact](args, 1), arg[*Contact](args, 2))
	})
}

func (w *Wechaty) OnRoomLeave(fn func(room *Room, removees []*Contact, remover *Contact)) emitter.ID {
	return w.bus.On(EventRoomLeave, func(args ...any) {
		fn(arg[*Room](args, 0), arg[[]*Contact](args, 1), arg[*Contact](args, 2))
	})
}

func (w *Wechaty) OnRoomTopic(fn func(room *Room, newTopic, oldTopic string, changer *Contact)) emitter.ID {
	return w.bus.On(EventRoomTopic, func(args ...any) {
		fn(arg[*Room](args, 0), arg[string](args, 1), arg[string](args, 2), arg[*Contact](args, 3))
	})
}
