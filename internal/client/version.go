package client

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is the client release version reported in the User-Agent header.
const Version = "0.5.0"

// protocolVersionHeader carries the server's protocol version on every
// response; a response without it is rejected outright.
const protocolVersionHeader = "X-Geofront-Version"

// Inclusive compatibility window for the server protocol version.
var (
	minProtocolVersion = semver.MustParse("0.2.0")
	maxProtocolVersion = semver.MustParse("0.4.999")
)

// UserAgent identifies the client product and version on every request,
// including the WebSocket tunnel handshake.
func UserAgent() string {
	return fmt.Sprintf("geofront-cli/%s (%s)", Version, runtime.Version())
}

// checkProtocolVersion enforces the compatibility window against the
// response headers. It runs before the body is consumed, on every request.
func checkProtocolVersion(h http.Header) error {
	raw := strings.TrimSpace(h.Get(protocolVersionHeader))
	if raw == "" {
		return &ProtocolVersionError{
			Reason: fmt.Sprintf("the server did not send its protocol version (%s)", protocolVersionHeader),
		}
	}
	v, err := semver.StrictNewVersion(raw)
	if err != nil {
		return &ProtocolVersionError{
			Reason: fmt.Sprintf("the server sent an invalid protocol version %q", raw),
		}
	}
	if v.LessThan(minProtocolVersion) || v.GreaterThan(maxProtocolVersion) {
		return &ProtocolVersionError{
			ServerVersion: v,
			Reason: fmt.Sprintf("the server protocol version is incompatible with this client (supported range %s to %s)",
				minProtocolVersion, maxProtocolVersion),
		}
	}
	return nil
}
