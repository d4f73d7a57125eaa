package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/client"
	"github.com/geofront/geofront-cli/internal/constants"
	"github.com/geofront/geofront-cli/internal/models"
	"github.com/geofront/geofront-cli/internal/portmap"
	"github.com/geofront/geofront-cli/internal/tunnel"
	"github.com/geofront/geofront-cli/internal/utils"
)

// authorizeTarget parses a [user@]alias reference and resolves it to an
// authorized remote, re-authenticating when the stored session is stale. A
// user given in the reference overrides the login the server reports.
func authorizeTarget(cmd *cobra.Command, c *client.Client, logger zerolog.Logger, ref string) (models.Remote, string, error) {
	target, err := models.ParseTarget(ref)
	if err != nil {
		return models.Remote{}, "", err
	}
	flow := &client.AuthorizeFlow{
		Client:       c,
		Authenticate: browserAuthenticator(cmd),
		MaxRetries:   constants.AuthorizeRetries,
		Logger:       logger,
	}
	remote, err := flow.Run(cmd.Context(), target.Alias)
	if err != nil {
		return models.Remote{}, "", err
	}
	if target.User != "" {
		remote.User = target.User
	}
	if target.Port != 0 {
		remote.Port = target.Port
	}
	return remote, target.Alias, nil
}

// findExecutable picks the SSH-family binary: the command-line flag wins,
// then the config file, then a PATH lookup of the conventional name.
func findExecutable(flagValue, configured, name string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("cannot find a %s client on PATH: %w", name, err)
	}
	return path, nil
}

// runForeground hands the terminal to the resolved command until it exits.
func runForeground(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s exited: %w", argv[0], err)
	}
	return nil
}

// runDirect resolves the argv template against the remote itself and runs
// the command against the remote directly, without the WebSocket tunnel.
func runDirect(template []string, remote models.Remote) error {
	argv := utils.ResolveCommandTemplate(template, map[string]string{
		"user": remote.User,
		"host": remote.Host,
		"port": strconv.Itoa(remote.Port),
	})
	return runForeground(argv)
}

// runTunneled opens the WebSocket tunnel for alias on the remote's stable
// local port and supervises the spawned command for the whole session.
// Interrupt and termination signals tear the tunnel down cleanly.
func runTunneled(ctx context.Context, c *client.Client, alias string, remote models.Remote, template []string, settings *utils.Config, logger zerolog.Logger) error {
	wsURL, err := c.TunnelURL(alias)
	if err != nil {
		return err
	}
	ports, err := portmap.NewDefaultStore(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := tunnel.PipeConfig{
		URL:       wsURL,
		Remote:    remote,
		Ports:     ports,
		Command:   template,
		UserAgent: client.UserAgent(),
		Logger:    logger,
	}
	if settings.Tunnel.HandshakeTimeout > 0 {
		cfg.Dialer = tunnel.DefaultDialer(settings.Tunnel.HandshakeTimeout)
	}
	sup := &tunnel.Supervisor{Pipe: tunnel.NewPipe(cfg), Logger: logger}
	return sup.Run(ctx)
}
