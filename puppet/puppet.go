// Package puppet defines the contract between the wechaty client and the
// automation backend ("puppet") that performs the real chat-network
// operations.
//
// A Puppet answers payload lookups, accepts outbound messages and streams
// inbound events. Implementations live in subpackages: puppet/service talks
// to a remote puppet service over the network, puppet/mock keeps everything
// in memory for tests and offline runs.
package puppet

import "context"

// EventHandler receives every inbound event from a puppet. Implementations
// call it sequentially, in arrival order.
type EventHandler func(Event)

// Puppet is the transport collaborator consumed by the wechaty core. Every
// method that talks to the backend takes a context and may block.
type Puppet interface {
	// Start begins delivering inbound events to handler.
	Start(ctx context.Context, handler EventHandler) error

	// Stop ends event delivery and releases transport resources. Idempotent.
	Stop(ctx context.Context) error

	// SelfID returns the id of the logged-in account, or "" before login.
	SelfID() string

	// Logout signs the current account out.
	Logout(ctx context.Context) error

	// Ding asks the backend to answer with a "dong" event carrying data.
	Ding(ctx context.Context, data string) error

	// DirtyPayload invalidates the backend's cached payload for id.
	DirtyPayload(ctx context.Context, kind PayloadType, id string) error

	ContactPayload(ctx context.Context, contactID string) (*ContactPayload, error)
	ContactAlias(ctx context.Context, contactID, alias string) error
	ContactAvatar(ctx context.Context, contactID string) (*FileBox, error)
	ContactList(ctx context.Context) ([]string, error)
	TagContactList(ctx context.Context, contactID string) ([]string, error)

	RoomPayload(ctx context.Context, roomID string) (*RoomPayload, error)
	RoomList(ctx context.Context) ([]string, error)
	RoomMemberList(ctx context.Context, roomID string) ([]string, error)
	RoomTopic(ctx context.Context, roomID, topic string) error

	MessagePayload(ctx context.Context, messageID string) (*MessagePayload, error)

	// The send operations return the id of the created message. An empty
	// id means the backend accepted the message without reporting one.
	MessageSendText(ctx context.Context, conversationID, text string, mentionIDs ...string) (string, error)
	MessageSendContact(ctx context.Context, conversationID, contactID string) (string, error)
	MessageSendFile(ctx context.Context, conversationID string, file *FileBox) (string, error)
	MessageSendURL(ctx context.Context, conversationID string, link UrlLinkPayload) (string, error)
	MessageSendMiniProgram(ctx context.Context, conversationID string, program MiniProgramPayload) (string, error)
}
