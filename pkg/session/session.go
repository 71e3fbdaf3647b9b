package session

import (
	"sync/atomic"
	"time"

	"github.com/harun/ssegate/pkg/stream"
)

// Session is one connected client: its identifier and the push channel it owns
type Session struct {
	ID         string
	Channel    *stream.Channel
	CreatedAt  time.Time
	RemoteAddr string
	Limiter    *RateLimiter

	lastActivity atomic.Int64
	terminate    func()
}

// New creates a session owning ch
func New(id string, ch *stream.Channel, remoteAddr string, limiter *RateLimiter) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		Channel:    ch,
		CreatedAt:  now,
		RemoteAddr: remoteAddr,
		Limiter:    limiter,
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// OnTerminate installs the teardown run by Terminate. It must be called
// before the session is registered.
func (s *Session) OnTerminate(fn func()) {
	s.terminate = fn
}

// Terminate tears the session down. Without an installed teardown it
// closes the channel.
func (s *Session) Terminate() {
	if s.terminate != nil {
		s.terminate()
		return
	}
	if s.Channel != nil {
		s.Channel.Close()
	}
}

// Touch records inbound activity
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent command
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Info is a serializable view of a session
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	RemoteAddr   string    `json:"remoteAddr"`
	Pending      int       `json:"pending"`
	Requests     int       `json:"requestsLastMinute"`
	InFlight     int       `json:"inFlight"`
}

// Info describes the session
func (s *Session) Info() Info {
	info := Info{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
		RemoteAddr:   s.RemoteAddr,
	}
	if s.Channel != nil {
		info.Pending = s.Channel.Pending()
	}
	if s.Limiter != nil {
		info.Requests, info.InFlight = s.Limiter.Stats()
	}
	return info
}
