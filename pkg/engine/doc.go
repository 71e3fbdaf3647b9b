// Package engine is a JSON-RPC 2.0 protocol engine for push-stream sessions.
//
// The engine never answers over HTTP. Every response travels as a "message"
// event on the session's stream, and the first event of every stream is an
// "endpoint" event naming the URL commands must be posted to.
//
// Usage:
//
//	eng := engine.New(engine.Config{Name: "ssegate", Version: "1.0.0"})
//	_ = eng.RegisterTool(engine.AddNumbersTool())
//	_ = eng.Open(ctx, channel, "/messages?sessionId="+channel.SessionID())
//	_ = eng.Handle(ctx, channel, payload)
package engine
