package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Call is one request or notification being dispatched
type Call struct {
	SessionID string
	Method    string
	Params    json.RawMessage
}

// Bind decodes the call parameters into v. Missing params decode as an empty object.
func (c *Call) Bind(v interface{}) error {
	if len(c.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Params, v); err != nil {
		return Errorf(InvalidParams, "Invalid params: %v", err)
	}
	return nil
}

// MethodHandler handles one JSON-RPC method
type MethodHandler func(ctx context.Context, call *Call) (interface{}, error)

// MethodRouter holds method registrations and dispatches messages to them
type MethodRouter struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler
}

// NewMethodRouter creates an empty router
func NewMethodRouter() *MethodRouter {
	return &MethodRouter{
		methods: make(map[string]MethodHandler),
	}
}

// RegisterMethod registers a method handler, replacing any previous one
func (r *MethodRouter) RegisterMethod(name string, handler MethodHandler) error {
	if name == "" {
		return fmt.Errorf("method name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = handler
	return nil
}

// Methods returns all registered method names, sorted
func (r *MethodRouter) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// ParseMessage decodes and validates one JSON-RPC message
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		if !json.Valid(data) {
			return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
		}
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request",
			Data:    err.Error(),
		}
	}

	if msg.JSONRPC == "" {
		msg.JSONRPC = jsonrpcVersion
	}
	if msg.JSONRPC != jsonrpcVersion {
		return &msg, Errorf(InvalidRequest, "Invalid request: unsupported jsonrpc version %q", msg.JSONRPC)
	}

	if msg.Method == "" && !msg.IsResponse() {
		return &msg, Errorf(InvalidRequest, "Invalid request: missing method field")
	}

	return &msg, nil
}

// Dispatch runs the handler for msg and builds its response.
// It returns nil for notifications.
func (r *MethodRouter) Dispatch(ctx context.Context, sessionID string, msg *Message) (resp *Response) {
	r.mu.RLock()
	handler, exists := r.methods[msg.Method]
	r.mu.RUnlock()

	if !exists {
		if msg.IsNotification() {
			return nil
		}
		return errorResponse(msg.ID, Errorf(MethodNotFound, "Method not found: %s", msg.Method))
	}

	defer func() {
		if p := recover(); p != nil {
			resp = errorResponse(msg.ID, Errorf(InternalError, "Internal error: %v", p))
			if msg.IsNotification() {
				resp = nil
			}
		}
	}()

	result, err := handler(ctx, &Call{SessionID: sessionID, Method: msg.Method, Params: msg.Params})
	if msg.IsNotification() {
		return nil
	}
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return errorResponse(msg.ID, rpcErr)
		}
		return errorResponse(msg.ID, &RPCError{Code: InternalError, Message: err.Error()})
	}
	if result == nil {
		result = struct{}{}
	}
	return &Response{JSONRPC: jsonrpcVersion, ID: msg.ID, Result: result}
}

func errorResponse(id json.RawMessage, rpcErr *RPCError) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: rpcErr}
}
