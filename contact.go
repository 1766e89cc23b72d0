package wechaty

import (
	"context"
	"fmt"

	"github.com/wechaty-go/wechaty/puppet"
)

// Contact is the handle for one remote contact. Obtain it from
// Wechaty.Contacts().Load; never construct it directly.
type Contact struct {
	accessory
	cache payloadCache[puppet.ContactPayload]
}

func newContact(w *Wechaty, id string) *Contact {
	return &Contact{accessory: accessory{wechaty: w, id: id}}
}

func (c *Contact) markDirty() { c.cache.markDirty() }

// Ready fetches the payload if none is cached or the cached one is dirty.
// With force the puppet is told to drop its own cache first.
func (c *Contact) Ready(ctx context.Context, force bool) error {
	return readyPayload(ctx, &c.accessory, puppet.PayloadContact, &c.cache, force,
		func(ctx context.Context) (*puppet.ContactPayload, error) {
			return c.wechaty.puppet.ContactPayload(ctx, c.id)
		})
}

// Sync refetches the payload, bypassing every cache.
func (c *Contact) Sync(ctx context.Context) error {
	return c.Ready(ctx, true)
}

// IsReady reports whether a payload with a non-empty name is cached.
func (c *Contact) IsReady() bool {
	p := c.cache.get()
	return p != nil && p.Name != ""
}

func (c *Contact) payload() (*puppet.ContactPayload, error) {
	p := c.cache.get()
	if p == nil {
		return nil, &NotReadyError{Kind: puppet.PayloadContact, ID: c.id}
	}
	return p, nil
}

// Payload returns a copy of the cached payload.
func (c *Contact) Payload() (puppet.ContactPayload, error) {
	p, err := c.payload()
	if err != nil {
		return puppet.ContactPayload{}, err
	}
	return *p, nil
}

// ============================================================================
// Accessors
// ============================================================================

// Name returns the contact's name, or "" before the first Ready.
func (c *Contact) Name() string {
	if p := c.cache.get(); p != nil {
		return p.Name
	}
	return ""
}

func (c *Contact) Alias() (string, error) {
	p, err := c.payload()
	if err != nil {
		return "", err
	}
	return p.Alias, nil
}

// Gender returns puppet.ContactGenderUnknown when no payload is cached.
func (c *Contact) Gender() puppet.ContactGender {
	if p := c.cache.get(); p != nil {
		return p.Gender
	}
	return puppet.ContactGenderUnknown
}

func (c *Contact) Province() (string, error) {
	p, err := c.payload()
	if err != nil {
		return "", err
	}
	return p.Province, nil
}

func (c *Contact) City() (string, error) {
	p, err := c.payload()
	if err != nil {
		return "", err
	}
	return p.City, nil
}

func (c *Contact) Type() (puppet.ContactType, error) {
	p, err := c.payload()
	if err != nil {
		return puppet.ContactTypeUnknown, err
	}
	return p.Type, nil
}

// Friend reports whether the contact is a friend of the logged-in account.
func (c *Contact) Friend() (bool, error) {
	p, err := c.payload()
	if err != nil {
		return false, err
	}
	return p.Friend, nil
}

// Stranger is the negation of Friend.
func (c *Contact) Stranger() (bool, error) {
	friend, err := c.Friend()
	if err != nil {
		return false, err
	}
	return !friend, nil
}

// Self reports whether this contact is the logged-in account.
func (c *Contact) Self() bool {
	selfID := c.wechaty.puppet.SelfID()
	return selfID != "" && selfID == c.id
}

func (c *Contact) String() string {
	if name := c.Name(); name != "" {
		return fmt.Sprintf("Contact<%s>", name)
	}
	return fmt.Sprintf("Contact<%s>", c.id)
}

// ============================================================================
// Operations
// ============================================================================

// SetAlias sets the alias of the contact and refetches the payload so the
// new alias is visible. On failure the cached payload is left unchanged.
func (c *Contact) SetAlias(ctx context.Context, alias string) error {
	if _, err := c.payload(); err != nil {
		return err
	}
	if err := c.wechaty.puppet.ContactAlias(ctx, c.id, alias); err != nil {
		err = &RemoteError{Op: "ContactAlias", Kind: puppet.PayloadContact, ID: c.id, Err: err}
		c.wechaty.logger.Error("wechaty: set alias failed", "id", c.id, "error", err)
		return err
	}
	return c.Sync(ctx)
}

// Avatar fetches the contact's avatar.
func (c *Contact) Avatar(ctx context.Context) (*puppet.FileBox, error) {
	box, err := c.wechaty.puppet.ContactAvatar(ctx, c.id)
	if err != nil {
		return nil, &RemoteError{Op: "ContactAvatar", Kind: puppet.PayloadContact, ID: c.id, Err: err}
	}
	return box, nil
}

// Tags returns the tags attached to the contact.
func (c *Contact) Tags(ctx context.Context) ([]*Tag, error) {
	ids, err := c.wechaty.puppet.TagContactList(ctx, c.id)
	if err != nil {
		return nil, &RemoteError{Op: "TagContactList", Kind: puppet.PayloadContact, ID: c.id, Err: err}
	}
	tags := make([]*Tag, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, c.wechaty.tags.Load(id))
	}
	return tags, nil
}

// Say sends content to the contact and returns the sent message, readied.
// It returns (nil, nil) when the puppet does not report a message id.
func (c *Contact) Say(ctx context.Context, content Sayable) (*Message, error) {
	return c.wechaty.say(ctx, c.id, content, nil)
}

// ContactList lists the account's contacts, readying each one. Listing
// stops at the first entry equal to this contact's own id; entries after
// it are not returned.
func (c *Contact) ContactList(ctx context.Context) ([]*Contact, error) {
	ids, err := c.wechaty.puppet.ContactList(ctx)
	if err != nil {
		return nil, &RemoteError{Op: "ContactList", Kind: puppet.PayloadContact, ID: c.id, Err: err}
	}
	var contacts []*Contact
	for _, id := range ids {
		if id == c.id {
			break
		}
		contact := c.wechaty.contacts.Load(id)
		if err := contact.Ready(ctx, false); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
