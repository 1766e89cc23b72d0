package wechaty

import (
	"context"
	"fmt"
)

// ContactSelf is the logged-in account. It is a view over the Contact
// handle with the same id, so both always see the same payload.
type ContactSelf struct {
	*Contact
}

func newContactSelf(w *Wechaty, id string) *ContactSelf {
	return &ContactSelf{Contact: w.contacts.Load(id)}
}

// Logout logs the account out of the puppet.
func (s *ContactSelf) Logout(ctx context.Context) error {
	if !s.Self() {
		return fmt.Errorf("wechaty: contact %s is not the logged-in account", s.id)
	}
	return s.wechaty.Logout(ctx)
}

func (s *ContactSelf) String() string {
	if name := s.Name(); name != "" {
		return fmt.Sprintf("ContactSelf<%s>", name)
	}
	return fmt.Sprintf("ContactSelf<%s>", s.id)
}
