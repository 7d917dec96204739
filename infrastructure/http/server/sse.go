package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// sseTransport frames events as Server-Sent Events on a streaming response.
// Only the relay loop of the owning session writes to it.
type sseTransport struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

func newSSETransport(w http.ResponseWriter, writeTimeout time.Duration) *sseTransport {
	return &sseTransport{w: w, rc: http.NewResponseController(w), writeTimeout: writeTimeout}
}

func (t *sseTransport) Ready(_ context.Context) error {
	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	t.w.WriteHeader(http.StatusOK)
	return t.flush()
}

// Send writes one frame. Encoded events are single-line JSON.
func (t *sseTransport) Send(_ context.Context, name string, data []byte) error {
	t.armDeadline()
	if _, err := fmt.Fprintf(t.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return t.flush()
}

func (t *sseTransport) KeepAlive(_ context.Context) error {
	t.armDeadline()
	if _, err := fmt.Fprint(t.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return t.flush()
}

func (t *sseTransport) armDeadline() {
	if t.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines (httptest does not).
		_ = t.rc.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
}

func (t *sseTransport) flush() error {
	return t.rc.Flush()
}
