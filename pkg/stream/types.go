package stream

import (
	"context"
	"errors"
)

var (
	// ErrChannelClosed is returned for writes to a torn-down push stream
	ErrChannelClosed = errors.New("channel closed")
	// ErrBacklogFull is returned when a channel already holds too many unwritten events
	ErrBacklogFull = errors.New("channel backlog full")
)

// Event is one server-sent event. Data is opaque to the transport.
type Event struct {
	Name string
	ID   string
	Data []byte
}

// EventWriter is the network side of a push stream.
// Implementations are only ever called from a single goroutine.
type EventWriter interface {
	WriteEvent(ev Event) error
	WriteComment(comment string) error
	Flush() error
}

// Sender is what protocol code needs from a push stream
type Sender interface {
	SessionID() string
	Send(ctx context.Context, ev Event) error
}
