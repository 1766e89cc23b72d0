package wechaty

import (
	"context"
	"fmt"
	"time"

	"github.com/wechaty-go/wechaty/puppet"
)

// Message is the handle for one sent or received message.
type Message struct {
	accessory
	cache payloadCache[puppet.MessagePayload]
}

func newMessage(w *Wechaty, id string) *Message {
	return &Message{accessory: accessory{wechaty: w, id: id}}
}

func (m *Message) markDirty() { m.cache.markDirty() }

// Ready fetches the message payload and readies the talker, listener and
// room it references before the payload becomes visible.
func (m *Message) Ready(ctx context.Context, force bool) error {
	return readyPayload(ctx, &m.accessory, puppet.PayloadMessage, &m.cache, force,
		func(ctx context.Context) (*puppet.MessagePayload, error) {
			p, err := m.wechaty.puppet.MessagePayload(ctx, m.id)
			if err != nil {
				return nil, err
			}
			for _, id := range []string{p.FromID, p.ToID} {
				if id == "" {
					continue
				}
				if err := m.wechaty.contacts.Load(id).Ready(ctx, false); err != nil {
					return nil, err
				}
			}
			if p.RoomID != "" {
				if err := m.wechaty.rooms.Load(p.RoomID).Ready(ctx, false); err != nil {
					return nil, err
				}
			}
			return p, nil
		})
}

func (m *Message) Sync(ctx context.Context) error {
	return m.Ready(ctx, true)
}

func (m *Message) IsReady() bool {
	return m.cache.get() != nil
}

func (m *Message) payload() (*puppet.MessagePayload, error) {
	p := m.cache.get()
	if p == nil {
		return nil, &NotReadyError{Kind: puppet.PayloadMessage, ID: m.id}
	}
	return p, nil
}

// Payload returns a copy of the cached payload.
func (m *Message) Payload() (puppet.MessagePayload, error) {
	p, err := m.payload()
	if err != nil {
		return puppet.MessagePayload{}, err
	}
	cp := *p
	cp.MentionIDList = append([]string(nil), p.MentionIDList...)
	return cp, nil
}

// ============================================================================
// Accessors
// ============================================================================

func (m *Message) Text() (string, error) {
	p, err := m.payload()
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

func (m *Message) Type() (puppet.MessageType, error) {
	p, err := m.payload()
	if err != nil {
		return puppet.MessageTypeUnknown, err
	}
	return p.Type, nil
}

// Date returns when the message was sent.
func (m *Message) Date() (time.Time, error) {
	p, err := m.payload()
	if err != nil {
		return time.Time{}, err
	}
	return p.Time(), nil
}

// Talker returns the sender.
func (m *Message) Talker() (*Contact, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	if p.FromID == "" {
		return nil, nil
	}
	return m.wechaty.contacts.Load(p.FromID), nil
}

// Listener returns the recipient of a direct message, or nil for room
// messages.
func (m *Message) Listener() (*Contact, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	if p.ToID == "" {
		return nil, nil
	}
	return m.wechaty.contacts.Load(p.ToID), nil
}

// Room returns the room the message was sent in, or nil.
func (m *Message) Room() (*Room, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	if p.RoomID == "" {
		return nil, nil
	}
	return m.wechaty.rooms.Load(p.RoomID), nil
}

// MentionList returns the contacts mentioned in a room message.
func (m *Message) MentionList() ([]*Contact, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	mentions := make([]*Contact, 0, len(p.MentionIDList))
	for _, id := range p.MentionIDList {
		mentions = append(mentions, m.wechaty.contacts.Load(id))
	}
	return mentions, nil
}

// Self reports whether the logged-in account sent the message.
func (m *Message) Self() bool {
	p := m.cache.get()
	if p == nil {
		return false
	}
	selfID := m.wechaty.puppet.SelfID()
	return selfID != "" && p.FromID == selfID
}

// Say replies in the message's conversation: the room for room messages,
// otherwise the other party of the direct chat.
func (m *Message) Say(ctx context.Context, content Sayable) (*Message, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	conversationID := p.FromID
	switch {
	case p.RoomID != "":
		conversationID = p.RoomID
	case m.Self() && p.ToID != "":
		conversationID = p.ToID
	}
	return m.wechaty.say(ctx, conversationID, content, nil)
}

func (m *Message) String() string {
	p := m.cache.get()
	if p == nil {
		return fmt.Sprintf("Message<%s>", m.id)
	}
	return fmt.Sprintf("Message#%d<%s>", p.Type, p.Text)
}
