package wechaty

import (
	"fmt"

	"github.com/wechaty-go/wechaty/puppet"
)

// NotReadyError is returned by accessors that need a payload when none has
// been fetched yet. Call Ready first.
//
//	var notReady *wechaty.NotReadyError
//	if errors.As(err, &notReady) { ... }
type NotReadyError struct {
	Kind puppet.PayloadType
	ID   string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("wechaty: %s %s is not ready", e.Kind, e.ID)
}

// RemoteError wraps a failed puppet call. The underlying transport error is
// available through errors.Unwrap / errors.As.
type RemoteError struct {
	// Op is the puppet operation that failed (e.g. "ContactPayload").
	Op   string
	Kind puppet.PayloadType
	ID   string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wechaty: %s %s: %s: %v", e.Kind, e.ID, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// UnsupportedContentError is returned by Say for content it cannot send.
type UnsupportedContentError struct {
	Content any
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("wechaty: unsupported content %T", e.Content)
}

// IdentityError reports an inbound event whose entity could not be
// resolved: either the event carried no id or the payload fetch failed.
// It is delivered to error listeners.
type IdentityError struct {
	Event string
	Kind  puppet.PayloadType
	ID    string
	Err   error
}

func (e *IdentityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("wechaty: %s event: cannot resolve %s %q", e.Event, e.Kind, e.ID)
	}
	return fmt.Sprintf("wechaty: %s event: cannot resolve %s %q: %v", e.Event, e.Kind, e.ID, e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }
