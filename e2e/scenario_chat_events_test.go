package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type testChatEventsSuite struct {
	BaseStreamSuite
}

func TestChatEventsSuite(t *testing.T) {
	suite.Run(t, &testChatEventsSuite{})
}

func chatRow(id int64, members ...int64) map[string]any {
	return map[string]any{
		"id": id, "ws_id": 1, "name": "e2e", "type": "group",
		"members": members, "agents": []int64{}, "created_at": time.Now().UTC(),
	}
}

func (s *testChatEventsSuite) TestChatLifecycle() {
	const member, outsider = 900001, 900002
	chatID := time.Now().UnixNano()

	s.WithStream("Member stream", member, func(frames <-chan Frame) {
		// Give the server a moment to register the session
		time.Sleep(100 * time.Millisecond)

		s.Run("Step 1: creation reaches members", func() {
			s.Notify("chat_updated", map[string]any{"op": "INSERT", "old": nil, "new": chatRow(chatID, member)})
			f := s.Expect(frames, 5*time.Second)
			s.Equal("NewChat", f.Name)
			s.Equal("NewChat", f.Data["event"])
			s.Equal(float64(chatID), f.Data["id"])
		})

		s.Run("Step 2: rename without membership change is silent", func() {
			renamed := chatRow(chatID, member)
			renamed["name"] = "renamed"
			s.Notify("chat_updated", map[string]any{"op": "UPDATE", "old": chatRow(chatID, member), "new": renamed})
			s.ExpectNone(frames, 500*time.Millisecond)
		})

		s.Run("Step 3: malformed payloads do not break the feed", func() {
			s.Notify("chat_updated", map[string]any{"op": "UPDATE", "old": nil})
			s.Notify("chat_message_created", map[string]any{
				"message": map[string]any{"id": 1, "chat_id": chatID, "sender_id": outsider, "content": "hi"},
				"members": []int64{member, outsider},
			})
			f := s.Expect(frames, 5*time.Second)
			s.Equal("NewMessage", f.Name)
			s.Equal("hi", f.Data["content"])
		})

		s.Run("Step 4: deletion reaches former members", func() {
			s.Notify("chat_updated", map[string]any{"op": "DELETE", "old": chatRow(chatID, member), "new": nil})
			f := s.Expect(frames, 5*time.Second)
			s.Equal("RemoveFromChat", f.Name)
		})
	})
}
