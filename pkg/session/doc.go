// Package session tracks live push-stream sessions by identifier.
//
// Invariants:
// - A session leaves the registry before its channel closes; a lookup that
//   won that race may still see a closed channel, whose Send fails with
//   ErrChannelClosed.
// - Register never replaces an existing entry.
// - Remove is idempotent; lookups after Remove returns never see the session.
// - RemoveSession never evicts a different session registered under the same id.
// - No registry lock is held while a channel writes.
//
// Usage:
//
//	reg := session.NewRegistry()
//	_ = reg.Register(session.New(id, ch, remoteAddr, session.NewRateLimiter()))
//	sess, err := reg.Lookup(id)
//	reg.Remove(id)
package session
