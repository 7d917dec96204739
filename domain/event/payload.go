package event

import "chat-notify/domain"

// Notification channels the database publishes on.
const (
	ChannelChatUpdated        = "chat_updated"
	ChannelChatMessageCreated = "chat_message_created"
)

var Channels = []string{ChannelChatUpdated, ChannelChatMessageCreated}

// Raw is a notification exactly as received from the database.
type Raw struct {
	Channel string
	Payload string
}

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChatUpdated is emitted by the chats trigger:
//
//	pg_notify('chat_updated', json_build_object('op', TG_OP, 'old', OLD, 'new', NEW)::text)
type ChatUpdated struct {
	Op  string       `json:"op"`
	Old *domain.Chat `json:"old"`
	New *domain.Chat `json:"new"`
}

// ChatMessageCreated is emitted by the messages trigger together with the
// member list of the chat the message belongs to.
type ChatMessageCreated struct {
	Message domain.Message  `json:"message"`
	Members []domain.UserID `json:"members"`
}
