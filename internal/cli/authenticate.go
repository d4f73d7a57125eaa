package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/client"
	"github.com/geofront/geofront-cli/pkg/sshkey"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Authenticate to the configured Geofront server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		logger := newLogger(settings)
		c, err := newClient(logger, settings)
		if err != nil {
			return err
		}
		return runAuthenticate(cmd, c, logger)
	},
}

func init() {
	rootCmd.AddCommand(authenticateCmd)
}

// runAuthenticate drives one full authentication ceremony, retrying while
// the server still reports it unfinished, then offers to register an SSH
// public key the server does not know yet.
func runAuthenticate(cmd *cobra.Command, c *client.Client, logger zerolog.Logger) error {
	ctx := cmd.Context()
	auth := browserAuthenticator(cmd)

	ceremony, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}
	for {
		if err := auth(ctx, ceremony.NextURL); err != nil {
			return err
		}
		identity, err := c.CompleteAuthentication(ctx, ceremony.TokenID)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s.\n", identity.Identifier)
			break
		}
		var unfinished *client.UnfinishedAuthenticationError
		if errors.As(err, &unfinished) {
			fmt.Fprintf(cmd.OutOrStdout(), "The authentication is not finished yet: %s\n", unfinished.Message)
			continue
		}
		return err
	}

	offerKeyRegistration(cmd, c, logger)
	return nil
}

// sshPublicKeyNames are the default public key files OpenSSH generates,
// in the order we prefer to register them.
var sshPublicKeyNames = []string{"id_ed25519.pub", "id_ecdsa.pub", "id_rsa.pub"}

// offerKeyRegistration looks for a local SSH public key the server does not
// have yet and offers to register it. Failures here never fail the
// authentication; they are merely logged.
func offerKeyRegistration(cmd *cobra.Command, c *client.Client, logger zerolog.Logger) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	registered, err := c.Keys(cmd.Context())
	if err != nil {
		logger.Debug().Err(err).Msg("Could not list registered keys, skipping key registration")
		return
	}

	out := cmd.OutOrStdout()
	for _, name := range sshPublicKeyNames {
		path := filepath.Join(home, ".ssh", name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		key, err := sshkey.Parse(string(raw))
		if err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable public key")
			continue
		}
		if _, ok := registered[key.Fingerprint()]; ok {
			return
		}

		fmt.Fprintf(out, "Your public key %s is not registered to %s yet.\n", path, c.ServerURL())
		fmt.Fprint(out, "Register it now? [Y/n] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "n") {
			return
		}
		if err := c.RegisterKey(cmd.Context(), key.String()); err != nil {
			if errors.Is(err, client.ErrDuplicateKey) {
				fmt.Fprintln(out, "That key is already registered.")
				return
			}
			logger.Warn().Err(err).Str("path", path).Msg("Failed to register the public key")
			return
		}
		fmt.Fprintf(out, "Registered %s (%s).\n", path, key.Fingerprint())
		return
	}
}
