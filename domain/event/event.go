package event

import (
	"chat-notify/domain"
	"encoding/json"
	"fmt"
)

// AppEvent is the closed set of events pushed to connected users.
// A single value is shared read-only by every session it is delivered to.
type AppEvent interface {
	Name() string
	appEvent()
}

const (
	NewChatName        = "NewChat"
	AddToChatName      = "AddToChat"
	RemoveFromChatName = "RemoveFromChat"
	NewMessageName     = "NewMessage"
)

type NewChat struct{ Chat domain.Chat }

type AddToChat struct{ Chat domain.Chat }

type RemoveFromChat struct{ Chat domain.Chat }

type NewMessage struct{ Message domain.Message }

func (NewChat) Name() string        { return NewChatName }
func (AddToChat) Name() string      { return AddToChatName }
func (RemoveFromChat) Name() string { return RemoveFromChatName }
func (NewMessage) Name() string     { return NewMessageName }

func (NewChat) appEvent()        {}
func (AddToChat) appEvent()      {}
func (RemoveFromChat) appEvent() {}
func (NewMessage) appEvent()     {}

// Encode renders the event as a flat JSON object tagged with its variant:
//
//	{"event":"NewChat","id":1,"wsId":1,...}
func Encode(e AppEvent) ([]byte, error) {
	var payload any
	switch v := e.(type) {
	case NewChat:
		payload = v.Chat
	case AddToChat:
		payload = v.Chat
	case RemoveFromChat:
		payload = v.Chat
	case NewMessage:
		payload = v.Message
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(e.Name())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"event":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}

// Notification is a classified event together with the users it concerns.
// Users holds no duplicates.
type Notification struct {
	Users []domain.UserID
	Event AppEvent
}

// Empty reports whether nobody has to be notified.
func (n Notification) Empty() bool {
	return len(n.Users) == 0 || n.Event == nil
}
