package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var colonizeIdentity string

var colonizeCmd = &cobra.Command{
	Use:   "colonize <[user@]alias>",
	Short: "Allow the server's master key on a remote",
	Long: "Append the server's master public key to the remote's " +
		"~/.ssh/authorized_keys over SSH, so the server can manage access " +
		"to it from then on.",
	Args: cobra.ExactArgs(1),
	RunE: runColonize,
}

func init() {
	colonizeCmd.Flags().StringVarP(&colonizeIdentity, "identity", "i", "",
		"identity file passed to the ssh client")
	rootCmd.AddCommand(colonizeCmd)
}

func runColonize(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings)
	c, err := newClient(logger, settings)
	if err != nil {
		return err
	}

	remote, _, err := authorizeTarget(cmd, c, logger, args[0])
	if err != nil {
		return err
	}
	masterKey, err := c.MasterKey(cmd.Context())
	if err != nil {
		return err
	}

	exe, err := findExecutable("", settings.SSH.Executable, "ssh")
	if err != nil {
		return err
	}
	template := []string{exe}
	if identity := firstNonEmpty(colonizeIdentity, settings.SSH.IdentityFile); identity != "" {
		template = append(template, "-i", identity)
	}
	template = append(template, "-l", "$user", "-p", "$port", "$host",
		colonizeRemoteCommand(masterKey))

	if err := runDirect(template, remote); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "The master key is now allowed on %s.\n", remote)
	return nil
}

// colonizeRemoteCommand is the shell command run on the remote to append
// the master key. The key line is single-quoted; authorized_keys material
// is base64 and never contains a quote.
func colonizeRemoteCommand(masterKey string) string {
	return fmt.Sprintf("mkdir ~/.ssh 2>/dev/null; echo '%s' >> ~/.ssh/authorized_keys", masterKey)
}
