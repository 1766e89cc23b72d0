package wechaty

import (
	"context"
	"sync"

	"github.com/wechaty-go/wechaty/puppet"
)

// handle is implemented by every entity handle a manager stores.
type handle interface {
	ID() string
	markDirty()
}

// manager is the identity map for one entity kind. It is the only place
// handles are created, so a (kind, id) pair maps to exactly one handle for
// the lifetime of the session.
type manager[H handle] struct {
	mu     sync.Mutex
	items  map[string]H
	create func(id string) H
}

func newManager[H handle](create func(id string) H) *manager[H] {
	return &manager[H]{
		items:  make(map[string]H),
		create: create,
	}
}

// Load returns the handle for id, creating it on first use. It never
// fetches a payload and never fails.
func (m *manager[H]) Load(id string) H {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.items[id]; ok {
		return h
	}
	h := m.create(id)
	m.items[id] = h
	return h
}

// Lookup returns the handle for id if one has been loaded.
func (m *manager[H]) Lookup(id string) (H, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.items[id]
	return h, ok
}

// Len returns the number of loaded handles.
func (m *manager[H]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// markDirty flags the payload of a loaded handle as stale. Handles that
// were never loaded have nothing to invalidate.
func (m *manager[H]) markDirty(id string) bool {
	h, ok := m.Lookup(id)
	if !ok {
		return false
	}
	h.markDirty()
	return true
}

// ============================================================================
// Per-kind managers
// ============================================================================

// ContactManager loads Contact handles.
type ContactManager struct {
	*manager[*Contact]
	wechaty *Wechaty
}

// FindAll lists every contact the puppet knows, readying each one.
func (m *ContactManager) FindAll(ctx context.Context) ([]*Contact, error) {
	ids, err := m.wechaty.puppet.ContactList(ctx)
	if err != nil {
		return nil, &RemoteError{Op: "ContactList", Kind: puppet.PayloadContact, Err: err}
	}
	contacts := make([]*Contact, 0, len(ids))
	for _, id := range ids {
		c := m.Load(id)
		if err := c.Ready(ctx, false); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// ContactSelfManager loads ContactSelf handles. A ContactSelf shares its
// payload with the Contact handle of the same id.
type ContactSelfManager struct {
	*manager[*ContactSelf]
}

// RoomManager loads Room handles.
type RoomManager struct {
	*manager[*Room]
	wechaty *Wechaty
}

// FindAll lists every room the puppet knows, readying each one.
func (m *RoomManager) FindAll(ctx context.Context) ([]*Room, error) {
	ids, err := m.wechaty.puppet.RoomList(ctx)
	if err != nil {
		return nil, &RemoteError{Op: "RoomList", Kind: puppet.PayloadRoom, Err: err}
	}
	rooms := make([]*Room, 0, len(ids))
	for _, id := range ids {
		r := m.Load(id)
		if err := r.Ready(ctx, false); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}

// MessageManager loads Message handles.
type MessageManager struct {
	*manager[*Message]
}

// TagManager loads Tag handles.
type TagManager struct {
	*manager[*Tag]
}
