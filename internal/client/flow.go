package client

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/geofront/geofront-cli/internal/models"
)

// FlowState tracks where an AuthorizeFlow is in its lifecycle.
type FlowState string

const (
	FlowNeedsAuth      FlowState = "needs-auth"
	FlowAuthenticating FlowState = "authenticating"
	FlowAuthorized     FlowState = "authorized"
	FlowFailed         FlowState = "failed"
)

// Authenticator runs the interactive part of the ceremony: it receives the
// browser-facing URL and returns once the user reports the ceremony done.
type Authenticator func(ctx context.Context, nextURL string) error

// AuthorizeFlow resolves an alias to a remote, re-authenticating when the
// stored session is missing or expired. The retry is an explicit, bounded
// state machine rather than an open-ended catch-and-loop: at most
// MaxRetries re-authentications happen before the session error is
// surfaced. Alias and remote-state failures are never retried.
type AuthorizeFlow struct {
	Client       *Client
	Authenticate Authenticator
	MaxRetries   int // re-authentication budget; 0 means one (the default)
	Logger       zerolog.Logger

	state FlowState
}

// State reports the flow's last observed state.
func (f *AuthorizeFlow) State() FlowState {
	if f.state == "" {
		return FlowNeedsAuth
	}
	return f.state
}

// Run drives the flow to completion for one alias.
func (f *AuthorizeFlow) Run(ctx context.Context, alias string) (models.Remote, error) {
	retries := f.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	for attempt := 0; ; attempt++ {
		remote, err := f.Client.Authorize(ctx, alias)
		if err == nil {
			f.state = FlowAuthorized
			return remote, nil
		}
		if !errors.Is(err, ErrNoToken) && !errors.Is(err, ErrExpiredToken) {
			f.state = FlowFailed
			return models.Remote{}, err
		}
		if attempt >= retries {
			f.state = FlowFailed
			return models.Remote{}, err
		}

		f.state = FlowNeedsAuth
		f.Logger.Info().Str("alias", alias).Err(err).Msg("Session invalid, re-authenticating")
		if err := f.runCeremony(ctx); err != nil {
			f.state = FlowFailed
			return models.Remote{}, err
		}
	}
}

func (f *AuthorizeFlow) runCeremony(ctx context.Context) error {
	f.state = FlowAuthenticating
	ceremony, err := f.Client.Authenticate(ctx)
	if err != nil {
		return err
	}
	if f.Authenticate != nil {
		if err := f.Authenticate(ctx, ceremony.NextURL); err != nil {
			return err
		}
	}
	_, err = f.Client.CompleteAuthentication(ctx, ceremony.TokenID)
	return err
}
