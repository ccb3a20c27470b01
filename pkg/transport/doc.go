// Package transport defines the link layer under the overlay: listeners that
// accept sessions, transports that dial them, and sessions that carry one
// length-prefixed frame per message.
//
// Implementations live in subpackages (tcp, quic, mem, winpipe). Stream-based
// links share the Framed session in this package; a session's SendBytes is
// safe for concurrent callers while RecvBytes expects a single reader.
package transport
