// Package protocol defines the sync wire frames and the codecs used to put them on a WebSocket.
//
// Frames are flat objects with a "type" discriminator and Unix-millisecond timestamps. The codec is
// negotiated through the WebSocket subprotocol: JSON text frames by default, msgpack binary frames
// when the client offers portfolio-sync.msgpack.
package protocol
