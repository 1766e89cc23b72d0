// Package mock provides an in-memory puppet.Puppet.
//
// The mock keeps contacts, rooms and messages in goroutine-safe maps,
// counts every call per operation and can be told to fail any operation.
// Tests use it to observe exactly which transport calls the wechaty core
// makes; the bot uses it for offline runs.
//
// Usage:
//
//	p := mock.New()
//	p.AddContact(puppet.ContactPayload{ID: "c1", Name: "Alice"})
//	bot := wechaty.New(p)
//	bot.Start(ctx)
//	p.Login("self-id")
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wechaty-go/wechaty/puppet"
)

// ErrNotFound is returned for ids the mock does not hold.
var ErrNotFound = errors.New("mock: not found")

// Operation names accepted by Calls and Fail.
const (
	OpStart                  = "Start"
	OpLogout                 = "Logout"
	OpDing                   = "Ding"
	OpDirtyPayload           = "DirtyPayload"
	OpContactPayload         = "ContactPayload"
	OpContactAlias           = "ContactAlias"
	OpContactAvatar          = "ContactAvatar"
	OpContactList            = "ContactList"
	OpTagContactList         = "TagContactList"
	OpRoomPayload            = "RoomPayload"
	OpRoomList               = "RoomList"
	OpRoomMemberList         = "RoomMemberList"
	OpRoomTopic              = "RoomTopic"
	OpMessagePayload         = "MessagePayload"
	OpMessageSendText        = "MessageSendText"
	OpMessageSendContact     = "MessageSendContact"
	OpMessageSendFile        = "MessageSendFile"
	OpMessageSendURL         = "MessageSendURL"
	OpMessageSendMiniProgram = "MessageSendMiniProgram"
)

// Sent records one outbound message.
type Sent struct {
	Op             string
	ConversationID string
	MessageID      string
	Content        any
}

// Puppet is an in-memory puppet.Puppet.
type Puppet struct {
	mu       sync.RWMutex
	selfID   string
	handler  puppet.EventHandler
	contacts map[string]*puppet.ContactPayload
	rooms    map[string]*puppet.RoomPayload
	messages map[string]*puppet.MessagePayload
	tags     map[string][]string
	// insertion order for list operations
	contactIDs []string
	roomIDs    []string

	calls   map[string]int
	fail    map[string]error
	nextIDs []string
	sent    []Sent
}

// New creates an empty mock puppet.
func New() *Puppet {
	return &Puppet{
		contacts: make(map[string]*puppet.ContactPayload),
		rooms:    make(map[string]*puppet.RoomPayload),
		messages: make(map[string]*puppet.MessagePayload),
		tags:     make(map[string][]string),
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
}

var _ puppet.Puppet = (*Puppet)(nil)

// ============================================================================
// Seeding and control
// ============================================================================

// AddContact stores or replaces a contact payload.
func (p *Puppet) AddContact(c puppet.ContactPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.contacts[c.ID]; !ok {
		p.contactIDs = append(p.contactIDs, c.ID)
	}
	p.contacts[c.ID] = &c
}

// AddRoom stores or replaces a room payload.
func (p *Puppet) AddRoom(r puppet.RoomPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[r.ID]; !ok {
		p.roomIDs = append(p.roomIDs, r.ID)
	}
	p.rooms[r.ID] = &r
}

// AddMessage stores or replaces a message payload.
func (p *Puppet) AddMessage(m puppet.MessagePayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[m.ID] = &m
}

// SetTags sets the tag ids attached to a contact.
func (p *Puppet) SetTags(contactID string, tagIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags[contactID] = append([]string(nil), tagIDs...)
}

// QueueMessageID makes the next send operations return the given ids, in
// order, instead of generated ones. An empty id simulates a backend that
// does not report one.
func (p *Puppet) QueueMessageID(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextIDs = append(p.nextIDs, ids...)
}

// Fail makes every later call to op return err. A nil err clears it.
func (p *Puppet) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.fail, op)
		return
	}
	p.fail[op] = err
}

// Calls returns how many times op has been called.
func (p *Puppet) Calls(op string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[op]
}

// Sent returns every outbound message in send order.
func (p *Puppet) Sent() []Sent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Sent(nil), p.sent...)
}

// Emit delivers an event to the handler registered by Start. It reports
// whether a handler was registered.
func (p *Puppet) Emit(event puppet.Event) bool {
	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()
	if handler == nil {
		return false
	}
	handler(event)
	return true
}

// EmitPayload builds an event from data and delivers it.
func (p *Puppet) EmitPayload(name string, data any) error {
	event, err := puppet.NewEvent(name, data)
	if err != nil {
		return err
	}
	p.Emit(event)
	return nil
}

// Login sets the self id and emits a login event.
func (p *Puppet) Login(contactID string) error {
	p.mu.Lock()
	p.selfID = contactID
	p.mu.Unlock()
	return p.EmitPayload(puppet.EventLogin, puppet.EventLoginPayload{ContactID: contactID})
}

// record counts a call and returns the injected failure for op, if any.
func (p *Puppet) record(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	return p.fail[op]
}

// ============================================================================
// puppet.Puppet: lifecycle
// ============================================================================

func (p *Puppet) Start(ctx context.Context, handler puppet.EventHandler) error {
	if err := p.record(OpStart); err != nil {
		return err
	}
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
	return nil
}

func (p *Puppet) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	return nil
}

func (p *Puppet) SelfID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selfID
}

func (p *Puppet) Logout(ctx context.Context) error {
	if err := p.record(OpLogout); err != nil {
		return err
	}
	p.mu.Lock()
	selfID := p.selfID
	p.selfID = ""
	p.mu.Unlock()
	if selfID == "" {
		return fmt.Errorf("mock: not logged in")
	}
	return p.EmitPayload(puppet.EventLogout, puppet.EventLogoutPayload{ContactID: selfID, Data: "logout"})
}

func (p *Puppet) Ding(ctx context.Context, data string) error {
	if err := p.record(OpDing); err != nil {
		return err
	}
	return p.EmitPayload(puppet.EventDong, puppet.EventDongPayload{Data: data})
}

func (p *Puppet) DirtyPayload(ctx context.Context, kind puppet.PayloadType, id string) error {
	return p.record(OpDirtyPayload)
}

// ============================================================================
// puppet.Puppet: contacts
// ============================================================================

func (p *Puppet) ContactPayload(ctx context.Context, contactID string) (*puppet.ContactPayload, error) {
	if err := p.record(OpContactPayload); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.contacts[contactID]
	if !ok {
		return nil, fmt.Errorf("mock: contact %s: %w", contactID, ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (p *Puppet) ContactAlias(ctx context.Context, contactID, alias string) error {
	if err := p.record(OpContactAlias); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.contacts[contactID]
	if !ok {
		return fmt.Errorf("mock: contact %s: %w", contactID, ErrNotFound)
	}
	updated := *c
	updated.Alias = alias
	p.contacts[contactID] = &updated
	return nil
}

func (p *Puppet) ContactAvatar(ctx context.Context, contactID string) (*puppet.FileBox, error) {
	if err := p.record(OpContactAvatar); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.contacts[contactID]
	if !ok {
		return nil, fmt.Errorf("mock: contact %s: %w", contactID, ErrNotFound)
	}
	if c.Avatar == "" {
		return nil, fmt.Errorf("mock: contact %s has no avatar: %w", contactID, ErrNotFound)
	}
	return puppet.FileBoxFromURL(c.Avatar, contactID+".jpg"), nil
}

func (p *Puppet) ContactList(ctx context.Context) ([]string, error) {
	if err := p.record(OpContactList); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.contactIDs...), nil
}

func (p *Puppet) TagContactList(ctx context.Context, contactID string) ([]string, error) {
	if err := p.record(OpTagContactList); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.tags[contactID]...), nil
}

// ============================================================================
// puppet.Puppet: rooms
// ============================================================================

func (p *Puppet) RoomPayload(ctx context.Context, roomID string) (*puppet.RoomPayload, error) {
	if err := p.record(OpRoomPayload); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("mock: room %s: %w", roomID, ErrNotFound)
	}
	copied := *r
	copied.MemberIDList = append([]string(nil), r.MemberIDList...)
	copied.AdminIDList = append([]string(nil), r.AdminIDList...)
	return &copied, nil
}

func (p *Puppet) RoomList(ctx context.Context) ([]string, error) {
	if err := p.record(OpRoomList); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.roomIDs...), nil
}

func (p *Puppet) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	if err := p.record(OpRoomMemberList); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("mock: room %s: %w", roomID, ErrNotFound)
	}
	return append([]string(nil), r.MemberIDList...), nil
}

func (p *Puppet) RoomTopic(ctx context.Context, roomID, topic string) error {
	if err := p.record(OpRoomTopic); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[roomID]
	if !ok {
		return fmt.Errorf("mock: room %s: %w", roomID, ErrNotFound)
	}
	updated := *r
	updated.Topic = topic
	p.rooms[roomID] = &updated
	return nil
}

// ============================================================================
// puppet.Puppet: messages
// ============================================================================

func (p *Puppet) MessagePayload(ctx context.Context, messageID string) (*puppet.MessagePayload, error) {
	if err := p.record(OpMessagePayload); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("mock: message %s: %w", messageID, ErrNotFound)
	}
	copied := *m
	return &copied, nil
}

func (p *Puppet) MessageSendText(ctx context.Context, conversationID, text string, mentionIDs ...string) (string, error) {
	return p.send(OpMessageSendText, conversationID, puppet.MessageTypeText, text, text, mentionIDs)
}

func (p *Puppet) MessageSendContact(ctx context.Context, conversationID, contactID string) (string, error) {
	return p.send(OpMessageSendContact, conversationID, puppet.MessageTypeContact, contactID, contactID, nil)
}

func (p *Puppet) MessageSendFile(ctx context.Context, conversationID string, file *puppet.FileBox) (string, error) {
	name := ""
	if file != nil {
		name = file.Name
	}
	return p.send(OpMessageSendFile, conversationID, puppet.MessageTypeAttachment, name, file, nil)
}

func (p *Puppet) MessageSendURL(ctx context.Context, conversationID string, link puppet.UrlLinkPayload) (string, error) {
	return p.send(OpMessageSendURL, conversationID, puppet.MessageTypeURL, link.URL, link, nil)
}

func (p *Puppet) MessageSendMiniProgram(ctx context.Context, conversationID string, program puppet.MiniProgramPayload) (string, error) {
	return p.send(OpMessageSendMiniProgram, conversationID, puppet.MessageTypeMiniProgram, program.Title, program, nil)
}

// send stores the outbound message so a later MessagePayload finds it.
func (p *Puppet) send(op, conversationID string, msgType puppet.MessageType, text string, content any, mentionIDs []string) (string, error) {
	if err := p.record(op); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var id string
	if len(p.nextIDs) > 0 {
		id, p.nextIDs = p.nextIDs[0], p.nextIDs[1:]
	} else {
		id = uuid.NewString()
	}
	p.sent = append(p.sent, Sent{Op: op, ConversationID: conversationID, MessageID: id, Content: content})
	if id == "" {
		return "", nil
	}

	msg := &puppet.MessagePayload{
		ID:            id,
		Type:          msgType,
		Text:          text,
		FromID:        p.selfID,
		MentionIDList: append([]string(nil), mentionIDs...),
		Timestamp:     time.Now().Unix(),
	}
	if _, isRoom := p.rooms[conversationID]; isRoom {
		msg.RoomID = conversationID
	} else {
		msg.ToID = conversationID
	}
	p.messages[id] = msg
	return id, nil
}
