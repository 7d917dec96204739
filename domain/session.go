package domain

import "github.com/google/uuid"

type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// SessionState follows a live connection from registration to teardown.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionRegistered
	SessionRelaying
	SessionClosing
	SessionDeregistered
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionRegistered:
		return "registered"
	case SessionRelaying:
		return "relaying"
	case SessionClosing:
		return "closing"
	case SessionDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}
