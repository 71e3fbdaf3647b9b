package stream

import (
	"errors"
	"net/http"

	sse "github.com/tmaxmax/go-sse"
)

var errNotUpgraded = errors.New("sse stream not upgraded")

// SSEWriter writes events to an HTTP response as text/event-stream
type SSEWriter struct {
	w    http.ResponseWriter
	r    *http.Request
	sess *sse.Session
}

// NewSSEWriter binds a writer to a response. Nothing is written until Upgrade.
func NewSSEWriter(w http.ResponseWriter, r *http.Request) *SSEWriter {
	return &SSEWriter{w: w, r: r}
}

// Upgrade switches the response to an event stream and sends the headers
func (s *SSEWriter) Upgrade() error {
	sess, err := sse.Upgrade(s.w, s.r)
	if err != nil {
		return err
	}
	s.sess = sess
	return sess.Flush()
}

// WriteEvent implements EventWriter
func (s *SSEWriter) WriteEvent(ev Event) error {
	if s.sess == nil {
		return errNotUpgraded
	}

	msg := &sse.Message{}
	if ev.Name != "" {
		msg.Type = sse.Type(ev.Name)
	}
	if ev.ID != "" {
		msg.ID = sse.ID(ev.ID)
	}
	msg.AppendData(string(ev.Data))
	return s.sess.Send(msg)
}

// WriteComment implements EventWriter
func (s *SSEWriter) WriteComment(comment string) error {
	if s.sess == nil {
		return errNotUpgraded
	}

	msg := &sse.Message{}
	msg.AppendComment(comment)
	return s.sess.Send(msg)
}

// Flush implements EventWriter
func (s *SSEWriter) Flush() error {
	if s.sess == nil {
		return errNotUpgraded
	}
	return s.sess.Flush()
}
