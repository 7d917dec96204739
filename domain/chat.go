// Package domain contains core concepts of the chat system.
// This file defines Chat rows as they are published by the database
// and delivered to connected users.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type UserID int64

type ChatType string

const (
	ChatSingle         ChatType = "single"
	ChatGroup          ChatType = "group"
	ChatPrivateChannel ChatType = "privateChannel"
	ChatPublicChannel  ChatType = "publicChannel"
)

// UnmarshalText accepts the database enum spelling (snake_case) as well as
// the camelCase and capitalized spellings used by API clients.
func (t *ChatType) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.ReplaceAll(string(b), "_", "")) {
	case "single":
		*t = ChatSingle
	case "group":
		*t = ChatGroup
	case "privatechannel":
		*t = ChatPrivateChannel
	case "publicchannel":
		*t = ChatPublicChannel
	default:
		return fmt.Errorf("unknown chat type %q", string(b))
	}
	return nil
}

// Chat is immutable once decoded. Members are unique within a chat.
type Chat struct {
	ID        int64     `json:"id"`
	WsID      int64     `json:"wsId"`
	Name      *string   `json:"name"`
	Type      ChatType  `json:"type"`
	Members   []UserID  `json:"members"`
	Agents    []int64   `json:"agents"`
	CreatedAt time.Time `json:"createdAt"`
}

// chatRow mirrors a chats row rendered by row_to_json, with the camelCase
// aliases kept for payloads produced by the application itself.
type chatRow struct {
	ID             int64     `json:"id"`
	WsID           *int64    `json:"ws_id"`
	WsIDAlias      *int64    `json:"wsId"`
	Name           *string   `json:"name"`
	Type           ChatType  `json:"type"`
	Members        []UserID  `json:"members"`
	Agents         []int64   `json:"agents"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedAtAlias time.Time `json:"createdAt"`
}

func (c *Chat) UnmarshalJSON(b []byte) error {
	var row chatRow
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	*c = Chat{
		ID:        row.ID,
		WsID:      firstInt(row.WsID, row.WsIDAlias),
		Name:      row.Name,
		Type:      row.Type,
		Members:   row.Members,
		Agents:    row.Agents,
		CreatedAt: firstTime(row.CreatedAt, row.CreatedAtAlias),
	}
	return nil
}

func firstInt(values ...*int64) int64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func firstTime(values ...time.Time) time.Time {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return time.Time{}
}
