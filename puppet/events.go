package puppet

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// Event envelope
// ============================================================================

// Event is one inbound notification from the puppet backend, for example
// {"event":"message","data":{"message_id":"m1"}}.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event by marshaling data.
func NewEvent(name string, data any) (Event, error) {
	if data == nil {
		return Event{Name: name}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("puppet: marshal %s event: %w", name, err)
	}
	return Event{Name: name, Data: raw}, nil
}

// DecodeEvent unmarshals the event data into a T.
func DecodeEvent[T any](e Event) (*T, error) {
	var result T
	if len(e.Data) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(e.Data, &result); err != nil {
		return nil, fmt.Errorf("puppet: decode %s event: %w", e.Name, err)
	}
	return &result, nil
}

// ============================================================================
// Event names
// ============================================================================

const (
	EventDong       = "dong"
	EventDirty      = "dirty"
	EventError      = "error"
	EventFriendship = "friendship"
	EventHeartbeat  = "heartbeat"
	EventLogin      = "login"
	EventLogout     = "logout"
	EventMessage    = "message"
	EventReady      = "ready"
	EventReset      = "reset"
	EventRoomInvite = "room-invite"
	EventRoomJoin   = "room-join"
	EventRoomLeave  = "room-leave"
	EventRoomTopic  = "room-topic"
	EventScan       = "scan"
)

const payloadDirtySuffix = "-payload-dirty"

// PayloadDirtyEvent returns the per-kind invalidation event name, such as
// "contact-payload-dirty".
func PayloadDirtyEvent(kind PayloadType) string {
	return string(kind) + payloadDirtySuffix
}

// ParsePayloadDirtyEvent extracts the payload kind from a per-kind
// invalidation event name.
func ParsePayloadDirtyEvent(name string) (PayloadType, bool) {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, payloadDirtySuffix) {
		return "", false
	}
	kind := PayloadType(strings.TrimSuffix(name, payloadDirtySuffix))
	if kind == "" {
		return "", false
	}
	return kind, true
}

// ============================================================================
// Event payloads
// ============================================================================

// ScanStatus is the state of a login QR code.
type ScanStatus int

const (
	ScanStatusUnknown   ScanStatus = 0
	ScanStatusCancel    ScanStatus = 1
	ScanStatusWaiting   ScanStatus = 2
	ScanStatusScanned   ScanStatus = 3
	ScanStatusConfirmed ScanStatus = 4
	ScanStatusTimeout   ScanStatus = 5
)

type EventScanPayload struct {
	QRCode string     `json:"qrcode,omitempty"`
	Status ScanStatus `json:"status"`
	Data   string     `json:"data,omitempty"`
}

type EventLoginPayload struct {
	ContactID string `json:"contact_id"`
}

type EventLogoutPayload struct {
	ContactID string `json:"contact_id"`
	Data      string `json:"data,omitempty"`
}

type EventMessagePayload struct {
	MessageID string `json:"message_id"`
}

type EventHeartbeatPayload struct {
	Data    string `json:"data"`
	Timeout int    `json:"timeout,omitempty"` // milliseconds
}

type EventErrorPayload struct {
	Data string `json:"data"`
}

type EventDongPayload struct {
	Data string `json:"data"`
}

// EventDirtyPayload is carried by the generic "dirty" event.
type EventDirtyPayload struct {
	PayloadType PayloadType `json:"payload_type"`
	PayloadID   string      `json:"payload_id"`
}

// EventPayloadDirtyPayload is carried by the per-kind "<kind>-payload-dirty"
// events. Only the field for the event's kind is set.
type EventPayloadDirtyPayload struct {
	ContactID string `json:"contact_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	PayloadID string `json:"payload_id,omitempty"`
}

// ID returns the entity id for kind, falling back to PayloadID.
func (p *EventPayloadDirtyPayload) ID(kind PayloadType) string {
	var id string
	switch kind {
	case PayloadContact:
		id = p.ContactID
	case PayloadRoom, PayloadRoomMember:
		id = p.RoomID
	case PayloadMessage:
		id = p.MessageID
	}
	if id == "" {
		id = p.PayloadID
	}
	return id
}

type EventRoomJoinPayload struct {
	RoomID        string   `json:"room_id"`
	InviteeIDList []string `json:"invitee_id_list"`
	InviterID     string   `json:"inviter_id"`
	Timestamp     int64    `json:"timestamp,omitempty"`
}

type EventRoomLeavePayload struct {
	RoomID        string   `json:"room_id"`
	RemoveeIDList []string `json:"removee_id_list"`
	RemoverID     string   `json:"remover_id"`
	Timestamp     int64    `json:"timestamp,omitempty"`
}

type EventRoomTopicPayload struct {
	RoomID    string `json:"room_id"`
	NewTopic  string `json:"new_topic"`
	OldTopic  string `json:"old_topic"`
	ChangerID string `json:"changer_id"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
