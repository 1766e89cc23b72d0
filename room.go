package wechaty

import (
	"context"
	"fmt"
	"slices"

	"github.com/wechaty-go/wechaty/puppet"
)

// Room is the handle for one group chat.
type Room struct {
	accessory
	cache payloadCache[puppet.RoomPayload]
}

func newRoom(w *Wechaty, id string) *Room {
	return &Room{accessory: accessory{wechaty: w, id: id}}
}

func (r *Room) markDirty() { r.cache.markDirty() }

func (r *Room) Ready(ctx context.Context, force bool) error {
	return readyPayload(ctx, &r.accessory, puppet.PayloadRoom, &r.cache, force,
		func(ctx context.Context) (*puppet.RoomPayload, error) {
			return r.wechaty.puppet.RoomPayload(ctx, r.id)
		})
}

func (r *Room) Sync(ctx context.Context) error {
	return r.Ready(ctx, true)
}

// IsReady reports whether a payload is cached. Rooms may have an empty
// topic, so presence is enough.
func (r *Room) IsReady() bool {
	return r.cache.get() != nil
}

func (r *Room) payload() (*puppet.RoomPayload, error) {
	p := r.cache.get()
	if p == nil {
		return nil, &NotReadyError{Kind: puppet.PayloadRoom, ID: r.id}
	}
	return p, nil
}

// Payload returns a copy of the cached payload.
func (r *Room) Payload() (puppet.RoomPayload, error) {
	p, err := r.payload()
	if err != nil {
		return puppet.RoomPayload{}, err
	}
	cp := *p
	cp.MemberIDList = slices.Clone(p.MemberIDList)
	cp.AdminIDList = slices.Clone(p.AdminIDList)
	return cp, nil
}

// Topic returns the room topic, or "" before the first Ready.
func (r *Room) Topic() string {
	if p := r.cache.get(); p != nil {
		return p.Topic
	}
	return ""
}

// SetTopic changes the topic and refetches the payload.
func (r *Room) SetTopic(ctx context.Context, topic string) error {
	if err := r.wechaty.puppet.RoomTopic(ctx, r.id, topic); err != nil {
		err = &RemoteError{Op: "RoomTopic", Kind: puppet.PayloadRoom, ID: r.id, Err: err}
		r.wechaty.logger.Error("wechaty: set topic failed", "id", r.id, "error", err)
		return err
	}
	return r.Sync(ctx)
}

// Owner returns the room owner, or nil when the puppet does not report one.
func (r *Room) Owner() (*Contact, error) {
	p, err := r.payload()
	if err != nil {
		return nil, err
	}
	if p.OwnerID == "" {
		return nil, nil
	}
	return r.wechaty.contacts.Load(p.OwnerID), nil
}

// Has reports whether contact is a member according to the cached payload.
func (r *Room) Has(contact *Contact) (bool, error) {
	p, err := r.payload()
	if err != nil {
		return false, err
	}
	return slices.Contains(p.MemberIDList, contact.ID()), nil
}

// MemberList asks the puppet for the current members and readies each one.
func (r *Room) MemberList(ctx context.Context) ([]*Contact, error) {
	ids, err := r.wechaty.puppet.RoomMemberList(ctx, r.id)
	if err != nil {
		return nil, &RemoteError{Op: "RoomMemberList", Kind: puppet.PayloadRoomMember, ID: r.id, Err: err}
	}
	members := make([]*Contact, 0, len(ids))
	for _, id := range ids {
		c := r.wechaty.contacts.Load(id)
		if err := c.Ready(ctx, false); err != nil {
			return nil, err
		}
		members = append(members, c)
	}
	return members, nil
}

// Say sends content to the room. Text content mentions the given contacts;
// mentions are ignored for other content.
func (r *Room) Say(ctx context.Context, content Sayable, mentions ...*Contact) (*Message, error) {
	var mentionIDs []string
	for _, c := range mentions {
		if c != nil {
			mentionIDs = append(mentionIDs, c.ID())
		}
	}
	return r.wechaty.say(ctx, r.id, content, mentionIDs)
}

func (r *Room) String() string {
	if topic := r.Topic(); topic != "" {
		return fmt.Sprintf("Room<%s>", topic)
	}
	return fmt.Sprintf("Room<%s>", r.id)
}
