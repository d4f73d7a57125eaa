package constants

import "time"

const (
	// HandshakeTimeout bounds the WebSocket tunnel handshake.
	HandshakeTimeout = 45 * time.Second

	// ForwardBufferSize is the read chunk size when relaying the local
	// SSH stream into WebSocket frames.
	ForwardBufferSize = 4096

	// AuthorizeRetries caps how many times a missing or expired session
	// triggers re-authentication before authorize gives up.
	AuthorizeRetries = 1
)
