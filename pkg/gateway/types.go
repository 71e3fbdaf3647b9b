package gateway

import (
	"context"
	"errors"

	"github.com/harun/ssegate/pkg/stream"
)

// ErrMalformedRequest marks a command the router rejected before lookup:
// no session identifier, an unreadable or oversized body, or a body that
// is not JSON.
var ErrMalformedRequest = errors.New("malformed request")

// HeaderSessionID carries the session identifier when the query parameter
// is absent
const HeaderSessionID = "Mcp-Session-Id"

// QuerySessionID is the query parameter naming the target session
const QuerySessionID = "sessionId"

// HeaderRequestID carries the request correlation id
const HeaderRequestID = "X-Request-Id"

// Response bodies written by the router
const (
	bodyAccepted       = "Accepted"
	bodySessionMissing = "Missing sessionId"
	bodyNotFound       = "Session not found"
	bodyClosed         = "Session closed"
	bodyRateLimited    = "Too Many Requests"
	bodyInternalError  = `{"error":"Internal Server Error"}`
	bodyShuttingDown   = "Server is shutting down"
)

// ProtocolEngine interprets inbound command payloads and writes events to a
// session's push channel. The gateway treats it as opaque.
type ProtocolEngine interface {
	// Open is called once after a stream is established. endpoint is the
	// URL the client must post commands to.
	Open(ctx context.Context, out stream.Sender, endpoint string) error

	// Handle processes one command payload for the session behind out.
	// A returned error wrapping stream.ErrChannelClosed means the stream
	// is gone; any other error is an engine failure.
	Handle(ctx context.Context, out stream.Sender, payload []byte) error

	// Close releases engine state for a session. It may be called for
	// sessions the engine never saw.
	Close(sessionID string)
}
