package puppet

import "time"

// ============================================================================
// Payload kinds
// ============================================================================

// PayloadType names the kind of entity a payload or dirty notice refers to.
type PayloadType string

const (
	PayloadContact    PayloadType = "contact"
	PayloadRoom       PayloadType = "room"
	PayloadRoomMember PayloadType = "room-member"
	PayloadMessage    PayloadType = "message"
	PayloadFriendship PayloadType = "friendship"
)

// ============================================================================
// Contact
// ============================================================================

// ContactGender is the gender reported for a contact.
type ContactGender int

const (
	ContactGenderUnknown ContactGender = 0
	ContactGenderMale    ContactGender = 1
	ContactGenderFemale  ContactGender = 2
)

func (g ContactGender) String() string {
	switch g {
	case ContactGenderMale:
		return "male"
	case ContactGenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// ContactType distinguishes people from official and corporate accounts.
type ContactType int

const (
	ContactTypeUnknown     ContactType = 0
	ContactTypeIndividual  ContactType = 1
	ContactTypeOfficial    ContactType = 2
	ContactTypeCorporation ContactType = 3
)

// ContactPayload is the backend's snapshot of a contact. Treat it as
// immutable once received.
type ContactPayload struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Alias     string        `json:"alias,omitempty"`
	Avatar    string        `json:"avatar,omitempty"`
	Gender    ContactGender `json:"gender,omitempty"`
	Type      ContactType   `json:"type,omitempty"`
	Province  string        `json:"province,omitempty"`
	City      string        `json:"city,omitempty"`
	Signature string        `json:"signature,omitempty"`
	Friend    bool          `json:"friend,omitempty"`
	Star      bool          `json:"star,omitempty"`
	Weixin    string        `json:"weixin,omitempty"`
}

// ============================================================================
// Room
// ============================================================================

// RoomPayload is the backend's snapshot of a group chat.
type RoomPayload struct {
	ID           string   `json:"id"`
	Topic        string   `json:"topic"`
	Avatar       string   `json:"avatar,omitempty"`
	OwnerID      string   `json:"ownerId,omitempty"`
	AdminIDList  []string `json:"adminIdList,omitempty"`
	MemberIDList []string `json:"memberIdList,omitempty"`
}

// ============================================================================
// Message
// ============================================================================

// MessageType is the content kind of a message.
type MessageType int

const (
	MessageTypeUnknown     MessageType = 0
	MessageTypeAttachment  MessageType = 1
	MessageTypeAudio       MessageType = 2
	MessageTypeContact     MessageType = 3
	MessageTypeEmoticon    MessageType = 5
	MessageTypeImage       MessageType = 6
	MessageTypeText        MessageType = 7
	MessageTypeMiniProgram MessageType = 9
	MessageTypeURL         MessageType = 14
	MessageTypeVideo       MessageType = 15
)

// MessagePayload is the backend's snapshot of a message. FromID is the
// talker; ToID is set for one-to-one messages and RoomID for room messages.
type MessagePayload struct {
	ID            string      `json:"id"`
	Type          MessageType `json:"type"`
	Text          string      `json:"text,omitempty"`
	FromID        string      `json:"fromId,omitempty"`
	ToID          string      `json:"toId,omitempty"`
	RoomID        string      `json:"roomId,omitempty"`
	MentionIDList []string    `json:"mentionIdList,omitempty"`
	Filename      string      `json:"filename,omitempty"`
	Timestamp     int64       `json:"timestamp,omitempty"` // unix seconds
}

// Time returns the message timestamp as a time.Time.
func (p *MessagePayload) Time() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// ============================================================================
// Rich content
// ============================================================================

// UrlLinkPayload describes a link card.
type UrlLinkPayload struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// MiniProgramPayload describes a mini-program card.
type MiniProgramPayload struct {
	AppID       string `json:"appid,omitempty"`
	Username    string `json:"username,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	PagePath    string `json:"pagePath,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	ThumbURL    string `json:"thumbUrl,omitempty"`
	ThumbKey    string `json:"thumbKey,omitempty"`
	ShareID     string `json:"shareId,omitempty"`
}
