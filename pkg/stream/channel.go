package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
)

// Options tunes a Channel
type Options struct {
	// QueueLimit bounds events accepted but not yet written. Zero means unbounded.
	QueueLimit int
	// KeepAlive is the interval between comment frames on an idle stream. Zero disables them.
	KeepAlive time.Duration
	// OnClose runs once when the channel starts closing, before pending sends fail.
	OnClose func()
	Logger  zerolog.Logger
}

type outbound struct {
	event  Event
	result chan error
}

// Channel owns the long-lived outbound stream of one session.
//
// Send may be called from any number of goroutines. Events are written by the
// goroutine running Run, one at a time, in the order Send acquired the queue.
type Channel struct {
	id     string
	writer EventWriter
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	pending *queue.Queue
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel for the given session bound to writer
func NewChannel(id string, writer EventWriter, opts Options) *Channel {
	return &Channel{
		id:      id,
		writer:  writer,
		opts:    opts,
		logger:  opts.Logger.With().Str("sessionId", id).Logger(),
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// SessionID returns the identifier of the owning session
func (c *Channel) SessionID() string {
	return c.id
}

// Send queues ev and waits until it has been written to the stream.
//
// If ctx ends first, Send returns ctx.Err() and the event may still be
// delivered later. Once the channel is closed every pending and future
// Send fails with ErrChannelClosed.
func (c *Channel) Send(ctx context.Context, ev Event) error {
	item := &outbound{event: ev, result: make(chan error, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.opts.QueueLimit > 0 && c.pending.Length() >= c.opts.QueueLimit {
		c.mu.Unlock()
		return ErrBacklogFull
	}
	c.pending.Add(item)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-item.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the stream. Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		if c.opts.OnClose != nil {
			c.opts.OnClose()
		}

		c.mu.Lock()
		c.closed = true
		for c.pending.Length() > 0 {
			item := c.pending.Remove().(*outbound)
			item.result <- ErrChannelClosed
		}
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the channel has been closed
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pending returns the number of queued, unwritten events
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Length()
}

// Run is the writer loop. It returns when ctx ends, the channel is closed,
// or the underlying writer fails; in every case the channel is closed on return.
func (c *Channel) Run(ctx context.Context) error {
	defer c.Close()

	var keepAlive <-chan time.Time
	if c.opts.KeepAlive > 0 {
		ticker := time.NewTicker(c.opts.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-keepAlive:
			if err := c.writer.WriteComment("keepalive"); err != nil {
				return c.fail(err)
			}
			if err := c.writer.Flush(); err != nil {
				return c.fail(err)
			}
		case <-c.wake:
			if err := c.drain(); err != nil {
				return c.fail(err)
			}
		}
	}
}

func (c *Channel) drain() error {
	wrote := 0
	for {
		c.mu.Lock()
		if c.closed || c.pending.Length() == 0 {
			c.mu.Unlock()
			break
		}
		item := c.pending.Remove().(*outbound)
		c.mu.Unlock()

		if err := c.writer.WriteEvent(item.event); err != nil {
			item.result <- ErrChannelClosed
			return err
		}
		item.result <- nil
		wrote++
	}

	if wrote == 0 {
		return nil
	}
	return c.writer.Flush()
}

func (c *Channel) fail(err error) error {
	c.logger.Debug().Err(err).Msg("Push stream write failed")
	return fmt.Errorf("write to stream %s: %w", c.id, err)
}
