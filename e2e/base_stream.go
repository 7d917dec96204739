package e2e

import (
	"bufio"
	"chat-notify/auth"
	"chat-notify/domain"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
)

// Frame is one Server-Sent Event received from the notify server.
type Frame struct {
	Name string
	Data map[string]any
}

type BaseStreamSuite struct {
	suite.Suite
	Config Config
	DB     *sql.DB
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration and connects to the database.
// The suite is skipped when no environment is configured.
func (s *BaseStreamSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if !s.Config.Enabled() {
		s.T().Skip("E2E_DATABASE_URL and JWT_SECRET are required")
	}
	s.DB, err = sql.Open("postgres", s.Config.DatabaseURL)
	s.Require().NoError(err)
	s.Require().NoError(s.DB.Ping())
	s.tokens = auth.NewTokenManager(s.Config.JWTSecret, s.Config.JWTIssuer)
}

func (s *BaseStreamSuite) TearDownSuite() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

func (s *BaseStreamSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Notify publishes a payload exactly like the database triggers do.
func (s *BaseStreamSuite) Notify(channel string, payload any) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)
	_, err = s.DB.Exec("SELECT pg_notify($1, $2)", channel, string(body))
	s.Require().NoError(err)
}

// WithStream opens the event stream of userID for the duration of fn.
// Frames are pushed on the channel handed to fn; keep-alives are skipped.
func (s *BaseStreamSuite) WithStream(name string, userID domain.UserID, fn func(frames <-chan Frame)) {
	t := s.T()
	s.header(t, name)

	token, err := s.tokens.GenerateToken(userID, 0, time.Minute)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Config.NotifyURL, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to open stream at "+s.Config.NotifyURL)
	defer func() { _ = resp.Body.Close() }()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	frames := make(chan Frame, 16)
	go func() {
		defer close(frames)
		var current Frame
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data := strings.TrimPrefix(line, "data: ")
				if s.Config.DebugJSON {
					t.Log(current.Name, data)
				}
				if err := json.Unmarshal([]byte(data), &current.Data); err == nil {
					frames <- current
				}
				current = Frame{}
			}
		}
	}()

	fn(frames)
}

// Expect waits for the next frame.
func (s *BaseStreamSuite) Expect(frames <-chan Frame, timeout time.Duration) Frame {
	select {
	case f, ok := <-frames:
		s.Require().True(ok, "stream closed")
		return f
	case <-time.After(timeout):
		s.Require().Fail("no frame received")
		return Frame{}
	}
}

// ExpectNone checks that nothing arrives during the given window.
func (s *BaseStreamSuite) ExpectNone(frames <-chan Frame, window time.Duration) {
	select {
	case f := <-frames:
		s.Require().Failf("unexpected frame", "%s %v", f.Name, f.Data)
	case <-time.After(window):
	}
}
