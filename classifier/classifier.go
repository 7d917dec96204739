// Package classifier turns raw database notifications into typed events
// and the set of users that must receive them. It holds no state and does
// no I/O.
package classifier

import (
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Classify decodes a raw notification. A nil error with an empty
// Notification.Users means the change concerns nobody and must not be dispatched.
func Classify(raw event.Raw) (event.Notification, error) {
	switch raw.Channel {
	case event.ChannelChatUpdated:
		return classifyChatUpdated(raw.Payload)
	case event.ChannelChatMessageCreated:
		return classifyMessageCreated(raw.Payload)
	default:
		return event.Notification{}, fmt.Errorf("%w: %q", errors.ErrUnknownChannel, raw.Channel)
	}
}

func classifyChatUpdated(payload string) (event.Notification, error) {
	var p event.ChatUpdated
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return event.Notification{}, fmt.Errorf("%w: %s: %v", errors.ErrMalformedPayload, event.ChannelChatUpdated, err)
	}

	var evt event.AppEvent
	switch p.Op {
	case event.OpInsert:
		if p.New == nil {
			return event.Notification{}, missingSide(p.Op, "new")
		}
		evt = event.NewChat{Chat: *p.New}
	case event.OpUpdate:
		if p.Old == nil || p.New == nil {
			return event.Notification{}, missingSide(p.Op, "old and new")
		}
		evt = event.AddToChat{Chat: *p.New}
	case event.OpDelete:
		if p.Old == nil {
			return event.Notification{}, missingSide(p.Op, "old")
		}
		evt = event.RemoveFromChat{Chat: *p.Old}
	default:
		return event.Notification{}, fmt.Errorf("%w: %q", errors.ErrUnknownOperation, p.Op)
	}

	users := AffectedUsers(p.Old, p.New)
	if len(users) == 0 {
		return event.Notification{}, nil
	}
	return event.Notification{Users: users, Event: evt}, nil
}

func classifyMessageCreated(payload string) (event.Notification, error) {
	var p event.ChatMessageCreated
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return event.Notification{}, fmt.Errorf("%w: %s: %v", errors.ErrMalformedPayload, event.ChannelChatMessageCreated, err)
	}
	// The sender is a member too: its other sessions need the message.
	return event.Notification{
		Users: lo.Uniq(p.Members),
		Event: event.NewMessage{Message: p.Message},
	}, nil
}

// AffectedUsers applies the membership diff rule:
//   - both sides with the same member set: nobody
//   - both sides with different member sets: the union
//   - a single side: its members
//
// Edits that leave membership untouched (renames, type changes) notify
// nobody. Member order is irrelevant.
func AffectedUsers(oldChat, newChat *domain.Chat) []domain.UserID {
	switch {
	case oldChat != nil && newChat != nil:
		before, after := lo.Uniq(oldChat.Members), lo.Uniq(newChat.Members)
		removed, added := lo.Difference(before, after)
		if len(removed) == 0 && len(added) == 0 {
			return nil
		}
		return lo.Union(before, after)
	case oldChat != nil:
		return lo.Uniq(oldChat.Members)
	case newChat != nil:
		return lo.Uniq(newChat.Members)
	default:
		return nil
	}
}

func missingSide(op, side string) error {
	return fmt.Errorf("%w: %s without %s row", errors.ErrMalformedPayload, op, side)
}
