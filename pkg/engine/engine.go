package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ssegate/internal/tracing"
	"github.com/harun/ssegate/pkg/stream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Protocol versions the engine can speak, newest first
var SupportedProtocolVersions = []string{"2025-03-26", "2024-11-05"}

// Event names written to the push stream
const (
	EventEndpoint = "endpoint"
	EventMessage  = "message"
)

// Config holds engine configuration
type Config struct {
	Name    string
	Version string
	Logger  zerolog.Logger
}

type sessionState struct {
	protocolVersion string
	client          Implementation
	initialized     bool
	openedAt        time.Time
}

// Engine interprets JSON-RPC messages for connected sessions and answers
// them over each session's push stream.
type Engine struct {
	info   Implementation
	router *MethodRouter
	tools  *ToolRegistry
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// New creates an engine with the built-in methods registered
func New(cfg Config) *Engine {
	if cfg.Name == "" {
		cfg.Name = "ssegate"
	}
	if cfg.Version == "" {
		cfg.Version = "0.0.0"
	}

	e := &Engine{
		info:     Implementation{Name: cfg.Name, Version: cfg.Version},
		router:   NewMethodRouter(),
		tools:    NewToolRegistry(),
		logger:   cfg.Logger,
		sessions: make(map[string]*sessionState),
	}
	e.registerBuiltinMethods()
	return e
}

// RegisterTool adds a tool callable through tools/call
func (e *Engine) RegisterTool(tool Tool) error {
	return e.tools.Register(tool)
}

// RegisterMethod adds or replaces a JSON-RPC method
func (e *Engine) RegisterMethod(name string, handler MethodHandler) error {
	return e.router.RegisterMethod(name, handler)
}

// Open starts protocol state for a new session and tells the client where to
// post its messages. The endpoint event is the first event on the stream.
// If the event cannot be delivered the state is dropped again, so an Open
// that loses a race with Close leaves nothing behind.
func (e *Engine) Open(ctx context.Context, out stream.Sender, endpoint string) error {
	state := &sessionState{openedAt: time.Now()}

	e.mu.Lock()
	e.sessions[out.SessionID()] = state
	e.mu.Unlock()

	if err := out.Send(ctx, stream.Event{Name: EventEndpoint, Data: []byte(endpoint)}); err != nil {
		e.mu.Lock()
		if e.sessions[out.SessionID()] == state {
			delete(e.sessions, out.SessionID())
		}
		e.mu.Unlock()
		return fmt.Errorf("send endpoint event: %w", err)
	}
	return nil
}

// Close drops protocol state for a session
func (e *Engine) Close(sessionID string) {
	e.mu.Lock()
	state, ok := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if ok {
		e.logger.Debug().
			Str("sessionId", sessionID).
			Bool("initialized", state.initialized).
			Str("client", state.client.Name).
			Dur("duration", time.Since(state.openedAt)).
			Msg("Session state released")
	}
}

// Sessions returns the number of sessions with protocol state
func (e *Engine) Sessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.sessions)
}

// Handle processes one inbound payload (a message or a batch) and writes any
// responses to out. Protocol errors are answered on the stream; the returned
// error only reports failure to deliver.
func (e *Engine) Handle(ctx context.Context, out stream.Sender, payload []byte) error {
	ctx = tracing.WithSessionID(ctx, out.SessionID())
	ctx, span := tracing.StartSpan(ctx, "engine.handle", tracing.AttrPayloadBytes.Int(len(payload)))
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)

	var reply interface{}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		responses := e.handleBatch(ctx, out.SessionID(), trimmed)
		if len(responses) > 0 {
			reply = responses
		}
	} else if resp := e.handleMessage(ctx, out.SessionID(), trimmed); resp != nil {
		reply = resp
	}

	if reply == nil {
		return nil
	}

	data, err := json.Marshal(reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal response")
		return fmt.Errorf("marshal response: %w", err)
	}

	if err := out.Send(ctx, stream.Event{Name: EventMessage, Data: data}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send response")
		logger.Warn().Err(err).Msg("Failed to deliver response")
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

func (e *Engine) handleBatch(ctx context.Context, sessionID string, payload []byte) []*Response {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil || len(items) == 0 {
		return []*Response{errorResponse(nil, Errorf(InvalidRequest, "Invalid request: empty or malformed batch"))}
	}

	responses := make([]*Response, 0, len(items))
	for _, item := range items {
		if resp := e.handleMessage(ctx, sessionID, item); resp != nil {
			responses = append(responses, resp)
		}
	}
	return responses
}

func (e *Engine) handleMessage(ctx context.Context, sessionID string, data []byte) *Response {
	msg, err := ParseMessage(data)
	if err != nil {
		rpcErr, _ := err.(*RPCError)
		var id json.RawMessage
		if msg != nil {
			if msg.IsResponse() || (msg.Method != "" && msg.IsNotification()) {
				return nil
			}
			id = msg.ID
		}
		return errorResponse(id, rpcErr)
	}

	if msg.IsResponse() {
		e.logger.Debug().Str("sessionId", sessionID).RawJSON("id", nonEmptyID(msg.ID)).Msg("Ignoring client response")
		return nil
	}

	start := time.Now()
	resp := e.router.Dispatch(ctx, sessionID, msg)

	event := e.logger.Debug().
		Str("sessionId", sessionID).
		Str("method", msg.Method).
		Bool("notification", msg.IsNotification()).
		Dur("duration", time.Since(start))
	if resp != nil && resp.Error != nil {
		event = event.Int("code", resp.Error.Code)
	}
	event.Msg("Handled message")

	return resp
}

func (e *Engine) registerBuiltinMethods() {
	_ = e.router.RegisterMethod("initialize", e.handleInitialize)
	_ = e.router.RegisterMethod("notifications/initialized", e.handleInitialized)
	_ = e.router.RegisterMethod("ping", func(context.Context, *Call) (interface{}, error) {
		return struct{}{}, nil
	})
	_ = e.router.RegisterMethod("tools/list", func(context.Context, *Call) (interface{}, error) {
		return map[string]interface{}{"tools": e.tools.List()}, nil
	})
	_ = e.router.RegisterMethod("tools/call", e.handleToolCall)
}

func (e *Engine) handleInitialize(_ context.Context, call *Call) (interface{}, error) {
	var params initializeParams
	if err := call.Bind(&params); err != nil {
		return nil, err
	}

	version := SupportedProtocolVersions[0]
	for _, supported := range SupportedProtocolVersions {
		if params.ProtocolVersion == supported {
			version = supported
			break
		}
	}

	// State exists only between Open and Close; a command racing Close
	// is still answered but must not bring the state back.
	e.mu.Lock()
	if state, ok := e.sessions[call.SessionID]; ok {
		state.protocolVersion = version
		state.client = params.ClientInfo
	}
	e.mu.Unlock()

	e.logger.Info().
		Str("sessionId", call.SessionID).
		Str("client", params.ClientInfo.Name).
		Str("clientVersion", params.ClientInfo.Version).
		Str("protocolVersion", version).
		Msg("Session initialized")

	return initializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		ServerInfo: e.info,
	}, nil
}

func (e *Engine) handleInitialized(_ context.Context, call *Call) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.sessions[call.SessionID]; ok {
		state.initialized = true
	}
	return nil, nil
}

func (e *Engine) handleToolCall(ctx context.Context, call *Call) (interface{}, error) {
	var params callToolParams
	if err := call.Bind(&params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, Errorf(InvalidParams, "Invalid params: missing tool name")
	}

	ctx, span := tracing.StartSpan(ctx, "engine.tool", attribute.String("tool.name", params.Name))
	defer span.End()

	if !e.initialized(call.SessionID) {
		e.logger.Debug().Str("sessionId", call.SessionID).Str("tool", params.Name).Msg("Tool called before initialization")
	}

	result, err := e.tools.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result.IsError {
		span.SetStatus(codes.Error, "tool returned error result")
	}
	return result, nil
}

// initialized reports whether the client of a session completed the handshake
func (e *Engine) initialized(sessionID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.sessions[sessionID]
	return ok && state.initialized
}

func nonEmptyID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
