// Package socket is a thin client for the physics service's push channel.
//
// A Channel wraps a single WebSocket connection. Open dials immediately and
// never reconnects. Every inbound message goes to the configured handler;
// the default handler only logs it. Send writes the caller's bytes as one
// text message with no framing, acknowledgement or backpressure. Close drops
// the connection without a close handshake.
//
// The channel is deliberately not wired into a flight store. Callers that
// want to act on pushed data decode it themselves with DecodeUpdate or
// DecodeEnvelope.
//
// Lifecycle:
//
//	StateConnecting -> StateOpen -> StateClosed
//
// StateClosed is terminal. Send does not check the state; writing to a closed
// channel returns whatever error the connection reports.
package socket
