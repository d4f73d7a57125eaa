package client

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrNoToken means no session credential has ever been stored for this
	// server. Recoverable by authenticating.
	ErrNoToken = errors.New("no configured token id")

	// ErrExpiredToken means the server no longer recognizes the stored
	// credential. Recoverable by re-authenticating.
	ErrExpiredToken = errors.New("token id expired")

	// ErrDuplicateKey means the public key is already registered by
	// another identity.
	ErrDuplicateKey = errors.New("public key is already used by another identity")
)

// ProtocolVersionError reports a missing, malformed, or incompatible server
// protocol version. It is fatal for the whole operation; no retry helps.
type ProtocolVersionError struct {
	// ServerVersion is the version the server sent, nil when the header
	// was missing or unparsable.
	ServerVersion *semver.Version
	Reason        string
}

func (e *ProtocolVersionError) Error() string {
	if e.ServerVersion != nil {
		return fmt.Sprintf("%s (server version %s)", e.Reason, e.ServerVersion)
	}
	return e.Reason
}

// UnfinishedAuthenticationError means the authentication ceremony for the
// token has not completed yet; the caller may finish it and retry.
type UnfinishedAuthenticationError struct {
	Message string
}

func (e *UnfinishedAuthenticationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication is not finished yet"
}

// RemoteAliasError means the requested alias is not registered on the
// server. Not retried.
type RemoteAliasError struct {
	Alias   string
	Message string
}

func (e *RemoteAliasError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("no remote registered under alias %q", e.Alias)
}

// RemoteStateError means the server could not reach the remote behind the
// alias. Not retried.
type RemoteStateError struct {
	Alias   string
	Message string
}

func (e *RemoteStateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("remote %q is unreachable", e.Alias)
}
