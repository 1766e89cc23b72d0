package wechaty

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wechaty-go/wechaty/puppet"
)

// handlePuppetEvent translates one puppet event into cache invalidations and
// domain events. The puppet calls it sequentially.
func (w *Wechaty) handlePuppetEvent(e puppet.Event) {
	name := strings.ToLower(e.Name)
	ctx := w.eventContext()

	if kind, ok := puppet.ParsePayloadDirtyEvent(name); ok {
		p, err := puppet.DecodeEvent[puppet.EventPayloadDirtyPayload](e)
		if err != nil {
			w.emitError(err)
			return
		}
		w.dirty(kind, p.ID(kind))
		return
	}

	var err error
	switch name {
	case puppet.EventScan:
		err = w.onScan(e)
	case puppet.EventLogin:
		err = w.onLogin(ctx, e)
	case puppet.EventLogout:
		err = w.onLogout(e)
	case puppet.EventMessage:
		err = w.onMessage(ctx, e)
	case puppet.EventHeartbeat:
		var p *puppet.EventHeartbeatPayload
		if p, err = puppet.DecodeEvent[puppet.EventHeartbeatPayload](e); err == nil {
			w.bus.Emit(EventHeartbeat, p.Data)
		}
	case puppet.EventError:
		var p *puppet.EventErrorPayload
		if p, err = puppet.DecodeEvent[puppet.EventErrorPayload](e); err == nil {
			w.emitError(fmt.Errorf("wechaty: puppet error: %s", p.Data))
		}
	case puppet.EventReady:
		w.bus.Emit(EventReady)
	case puppet.EventDong:
		var p *puppet.EventDongPayload
		if p, err = puppet.DecodeEvent[puppet.EventDongPayload](e); err == nil {
			w.bus.Emit(EventDong, p.Data)
		}
	case puppet.EventDirty:
		var p *puppet.EventDirtyPayload
		if p, err = puppet.DecodeEvent[puppet.EventDirtyPayload](e); err == nil {
			w.dirty(p.PayloadType, p.PayloadID)
		}
	case puppet.EventRoomJoin:
		err = w.onRoomJoin(ctx, e)
	case puppet.EventRoomLeave:
		err = w.onRoomLeave(ctx, e)
	case puppet.EventRoomTopic:
		err = w.onRoomTopic(ctx, e)
	default:
		w.bus.Emit(name, json.RawMessage(e.Data))
	}
	if err != nil {
		w.emitError(err)
	}
}

// emitError logs err and delivers it to error listeners.
func (w *Wechaty) emitError(err error) {
	w.logger.Warn("wechaty: event error", "error", err)
	w.bus.Emit(EventError, err)
}

// dirty marks the loaded handle for (kind, id) stale and announces it.
// A contact id covers the ContactSelf view too, since both share one
// payload.
func (w *Wechaty) dirty(kind puppet.PayloadType, id string) {
	if id == "" {
		return
	}
	switch kind {
	case puppet.PayloadContact:
		w.contacts.markDirty(id)
	case puppet.PayloadRoom, puppet.PayloadRoomMember:
		w.rooms.markDirty(id)
	case puppet.PayloadMessage:
		w.messages.markDirty(id)
	}
	w.logger.Debug("wechaty: payload dirty", "kind", kind, "id", id)
	w.bus.Emit(EventDirty, kind, id)
}

// ============================================================================
// Translators
// ============================================================================

func (w *Wechaty) onScan(e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventScanPayload](e)
	if err != nil {
		return err
	}
	w.bus.Emit(EventScan, p.QRCode, p.Status, p.Data)
	return nil
}

func (w *Wechaty) onLogin(ctx context.Context, e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventLoginPayload](e)
	if err != nil {
		return err
	}
	if p.ContactID == "" {
		return &IdentityError{Event: EventLogin, Kind: puppet.PayloadContact}
	}

	self := w.contactSelves.Load(p.ContactID)
	w.mu.Lock()
	w.userSelf = self
	w.mu.Unlock()

	if err := self.Ready(ctx, false); err != nil {
		return &IdentityError{Event: EventLogin, Kind: puppet.PayloadContact, ID: p.ContactID, Err: err}
	}
	w.logger.Info("wechaty: logged in", "user", self.Name(), "id", self.ID())
	w.bus.Emit(EventLogin, self)
	return nil
}

func (w *Wechaty) onLogout(e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventLogoutPayload](e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	self := w.userSelf
	w.userSelf = nil
	w.mu.Unlock()

	if p.ContactID != "" {
		self = w.contactSelves.Load(p.ContactID)
	}
	if self == nil {
		return &IdentityError{Event: EventLogout, Kind: puppet.PayloadContact}
	}
	w.logger.Info("wechaty: logged out", "id", self.ID(), "reason", p.Data)
	w.bus.Emit(EventLogout, self, p.Data)
	return nil
}

func (w *Wechaty) onMessage(ctx context.Context, e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventMessagePayload](e)
	if err != nil {
		return err
	}
	if p.MessageID == "" {
		return &IdentityError{Event: EventMessage, Kind: puppet.PayloadMessage}
	}
	msg := w.messages.Load(p.MessageID)
	if err := msg.Ready(ctx, false); err != nil {
		return &IdentityError{Event: EventMessage, Kind: puppet.PayloadMessage, ID: p.MessageID, Err: err}
	}
	w.bus.Emit(EventMessage, msg)
	return nil
}

func (w *Wechaty) onRoomJoin(ctx context.Context, e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventRoomJoinPayload](e)
	if err != nil {
		return err
	}
	room, err := w.refreshRoom(ctx, EventRoomJoin, p.RoomID)
	if err != nil {
		return err
	}
	invitees, err := w.readyContacts(ctx, EventRoomJoin, p.InviteeIDList)
	if err != nil {
		return err
	}
	inviter, err := w.readyContact(ctx, EventRoomJoin, p.InviterID)
	if err != nil {
		return err
	}
	w.bus.Emit(EventRoomJoin, room, invitees, inviter)
	return nil
}

func (w *Wechaty) onRoomLeave(ctx context.Context, e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventRoomLeavePayload](e)
	if err != nil {
		return err
	}
	room, err := w.refreshRoom(ctx, EventRoomLeave, p.RoomID)
	if err != nil {
		return err
	}
	removees, err := w.readyContacts(ctx, EventRoomLeave, p.RemoveeIDList)
	if err != nil {
		return err
	}
	remover, err := w.readyContact(ctx, EventRoomLeave, p.RemoverID)
	if err != nil {
		return err
	}
	w.bus.Emit(EventRoomLeave, room, removees, remover)
	return nil
}

func (w *Wechaty) onRoomTopic(ctx context.Context, e puppet.Event) error {
	p, err := puppet.DecodeEvent[puppet.EventRoomTopicPayload](e)
	if err != nil {
		return err
	}
	room, err := w.refreshRoom(ctx, EventRoomTopic, p.RoomID)
	if err != nil {
		return err
	}
	changer, err := w.readyContact(ctx, EventRoomTopic, p.ChangerID)
	if err != nil {
		return err
	}
	w.bus.Emit(EventRoomTopic, room, p.NewTopic, p.OldTopic, changer)
	return nil
}

// refreshRoom invalidates and readies the room a membership or topic event
// refers to; the event means its payload has changed.
func (w *Wechaty) refreshRoom(ctx context.Context, event, id string) (*Room, error) {
	if id == "" {
		return nil, &IdentityError{Event: event, Kind: puppet.PayloadRoom}
	}
	room := w.rooms.Load(id)
	room.markDirty()
	if err := room.Ready(ctx, false); err != nil {
		return nil, &IdentityError{Event: event, Kind: puppet.PayloadRoom, ID: id, Err: err}
	}
	return room, nil
}

// readyContact loads and readies id. An empty id yields nil.
func (w *Wechaty) readyContact(ctx context.Context, event, id string) (*Contact, error) {
	if id == "" {
		return nil, nil
	}
	c := w.contacts.Load(id)
	if err := c.Ready(ctx, false); err != nil {
		return nil, &IdentityError{Event: event, Kind: puppet.PayloadContact, ID: id, Err: err}
	}
	return c, nil
}

func (w *Wechaty) readyContacts(ctx context.Context, event string, ids []string) ([]*Contact, error) {
	contacts := make([]*Contact, 0, len(ids))
	for _, id := range ids {
		c, err := w.readyContact(ctx, event, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}
