// Package domain contains core concepts of the chat system.
// This file defines Message rows carried by chat_message_created notifications.
// Messages are immutable once decoded.
package domain

import (
	"encoding/json"
	"time"
)

// Message represents an immutable chat message.
type Message struct {
	ID              int64     `json:"id"`
	ChatID          int64     `json:"chatId"`
	SenderID        UserID    `json:"senderId"`
	Content         string    `json:"content"`
	ModifiedContent *string   `json:"modifiedContent"`
	Files           []string  `json:"files"`
	CreatedAt       time.Time `json:"createdAt"`
}

type messageRow struct {
	ID                   int64     `json:"id"`
	ChatID               *int64    `json:"chat_id"`
	ChatIDAlias          *int64    `json:"chatId"`
	SenderID             *int64    `json:"sender_id"`
	SenderIDAlias        *int64    `json:"senderId"`
	Content              string    `json:"content"`
	ModifiedContent      *string   `json:"modified_content"`
	ModifiedContentAlias *string   `json:"modifiedContent"`
	Files                []string  `json:"files"`
	CreatedAt            time.Time `json:"created_at"`
	CreatedAtAlias       time.Time `json:"createdAt"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var row messageRow
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	modified := row.ModifiedContent
	if modified == nil {
		modified = row.ModifiedContentAlias
	}
	*m = Message{
		ID:              row.ID,
		ChatID:          firstInt(row.ChatID, row.ChatIDAlias),
		SenderID:        UserID(firstInt(row.SenderID, row.SenderIDAlias)),
		Content:         row.Content,
		ModifiedContent: modified,
		Files:           row.Files,
		CreatedAt:       firstTime(row.CreatedAt, row.CreatedAtAlias),
	}
	return nil
}
