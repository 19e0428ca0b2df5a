// Package syncclient is the admin-side change notifier. It keeps one WebSocket connection to the
// sync relay, batches change ids over a debounce window and reconnects with linear backoff.
//
// A Client is an actor: public methods post commands to a single goroutine which owns the
// connection, the pending batch and every timer. Timers only post events back into that loop,
// and each connection attempt carries a generation number so results from superseded attempts
// are discarded.
package syncclient
