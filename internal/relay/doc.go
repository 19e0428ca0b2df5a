// Package relay implements the preview sync relay using the actor pattern.
//
// A single goroutine owns the client registry and the bounded change history and drains a command
// channel (no mutexes). Every command becomes an event applied to the relay state, which returns
// the frames to deliver; delivery goes through one writer goroutine per connection, so a slow or
// broken client is evicted without stalling anyone else. Idle clients are evicted on a periodic
// cleanup tick. Nothing is persisted: a restart loses clients and history.
package relay
