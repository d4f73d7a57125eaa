package tunnel

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Supervisor binds the pipe's forwarding work and the SSH subprocess
// watcher together so neither can outlive the other unnoticed. Every
// goroutine it starts is awaited before Run returns.
type Supervisor struct {
	Pipe   *Pipe
	Logger zerolog.Logger
}

// Run drives one tunnel invocation end to end. The SSH client exiting
// cancels the forwarding work; the forwarding work ending closes the
// sockets, after which the SSH client exits on its own and is reaped.
// Cancellation, from the outer context or from either side finishing, is a
// first-class termination path and is not reported as an error.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	remote := s.Pipe.cfg.Remote.Key()

	if err := s.Pipe.Open(runCtx); err != nil {
		s.Logger.Error().Err(err).Str("remote", remote).Msg("Failed to open the tunnel")
		return err
	}

	pipeDone := make(chan error, 1)
	go func() { pipeDone <- s.Pipe.Serve(runCtx) }()

	procDone := make(chan error, 1)
	go func() { procDone <- s.Pipe.WaitProcess() }()

	var serveErr error
	select {
	case serveErr = <-pipeDone:
		// forwarding ended first; closing the sockets lets the SSH
		// client notice and exit, then reap it
		s.Pipe.Close()
		if procErr := <-procDone; procErr != nil {
			s.Logger.Debug().Err(procErr).Str("remote", remote).Msg("SSH client exited")
		}
	case procErr := <-procDone:
		if procErr != nil {
			s.Logger.Debug().Err(procErr).Str("remote", remote).Msg("SSH client exited")
		}
		cancel()
		serveErr = <-pipeDone
		s.Pipe.Close()
	}

	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	if serveErr != nil {
		s.Logger.Error().Err(serveErr).Str("remote", remote).Int("port", s.Pipe.LocalPort()).
			Msg("Tunnel terminated with a fault")
	}
	return serveErr
}
