package wechaty

import (
	"context"

	"github.com/wechaty-go/wechaty/puppet"
)

// Sayable is content that can be sent with Say. The set is closed: Text,
// *Contact (a contact card), File, *UrlLink and *MiniProgram.
type Sayable interface {
	sayable()
}

// Text is plain text content.
type Text string

// File is an attachment.
type File struct {
	Box *puppet.FileBox
}

// NewFile wraps a FileBox for sending.
func NewFile(box *puppet.FileBox) File { return File{Box: box} }

// UrlLink is a link card.
type UrlLink struct {
	payload puppet.UrlLinkPayload
}

// NewUrlLink builds a link card from its payload.
func NewUrlLink(payload puppet.UrlLinkPayload) *UrlLink {
	return &UrlLink{payload: payload}
}

func (u *UrlLink) Payload() puppet.UrlLinkPayload { return u.payload }
func (u *UrlLink) Title() string                  { return u.payload.Title }
func (u *UrlLink) URL() string                    { return u.payload.URL }

// MiniProgram is a mini-program card.
type MiniProgram struct {
	payload puppet.MiniProgramPayload
}

// NewMiniProgram builds a mini-program card from its payload.
func NewMiniProgram(payload puppet.MiniProgramPayload) *MiniProgram {
	return &MiniProgram{payload: payload}
}

func (m *MiniProgram) Payload() puppet.MiniProgramPayload { return m.payload }
func (m *MiniProgram) Title() string                      { return m.payload.Title }

func (Text) sayable()         {}
func (File) sayable()         {}
func (*Contact) sayable()     {}
func (*UrlLink) sayable()     {}
func (*MiniProgram) sayable() {}

// say dispatches content to the matching puppet send operation and loads
// the resulting message.
func (w *Wechaty) say(ctx context.Context, conversationID string, content Sayable, mentionIDs []string) (*Message, error) {
	var (
		op  string
		id  string
		err error
	)
	switch v := content.(type) {
	case Text:
		op = "MessageSendText"
		id, err = w.puppet.MessageSendText(ctx, conversationID, string(v), mentionIDs...)
	case *Contact:
		if v == nil {
			return nil, &UnsupportedContentError{Content: content}
		}
		op = "MessageSendContact"
		id, err = w.puppet.MessageSendContact(ctx, conversationID, v.ID())
	case *ContactSelf:
		if v == nil || v.Contact == nil {
			return nil, &UnsupportedContentError{Content: content}
		}
		op = "MessageSendContact"
		id, err = w.puppet.MessageSendContact(ctx, conversationID, v.ID())
	case File:
		if v.Box == nil {
			return nil, &UnsupportedContentError{Content: content}
		}
		op = "MessageSendFile"
		id, err = w.puppet.MessageSendFile(ctx, conversationID, v.Box)
	case *UrlLink:
		if v == nil {
			return nil, &UnsupportedContentError{Content: content}
		}
		op = "MessageSendURL"
		id, err = w.puppet.MessageSendURL(ctx, conversationID, v.payload)
	case *MiniProgram:
		if v == nil {
			return nil, &UnsupportedContentError{Content: content}
		}
		op = "MessageSendMiniProgram"
		id, err = w.puppet.MessageSendMiniProgram(ctx, conversationID, v.payload)
	default:
		return nil, &UnsupportedContentError{Content: content}
	}
	if err != nil {
		err = &RemoteError{Op: op, Kind: puppet.PayloadMessage, ID: conversationID, Err: err}
		w.logger.Error("wechaty: say failed", "conversation", conversationID, "error", err)
		return nil, err
	}
	if id == "" {
		w.logger.Debug("wechaty: puppet returned no message id", "op", op, "conversation", conversationID)
		return nil, nil
	}

	msg := w.messages.Load(id)
	if err := msg.Ready(ctx, false); err != nil {
		return nil, err
	}
	return msg, nil
}
