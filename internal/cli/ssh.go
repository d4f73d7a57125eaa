package cli

import (
	"github.com/spf13/cobra"
)

var (
	sshExecutable string
	sshIdentity   string
	sshDynamic    string
	sshTunnel     bool
)

var sshCmd = &cobra.Command{
	Use:   "ssh <[user@]alias>",
	Short: "Open an SSH session to a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSSHSession(cmd, args[0])
	},
}

// addSSHFlags registers the SSH session flags; the ssh and go commands
// share them.
func addSSHFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sshExecutable, "ssh", "S", "",
		"ssh client to run (default: ssh on PATH)")
	cmd.Flags().StringVarP(&sshIdentity, "identity", "i", "",
		"identity file passed to the ssh client")
	cmd.Flags().StringVarP(&sshDynamic, "dynamic-port", "D", "",
		"local SOCKS port forwarded through the session")
	cmd.Flags().BoolVarP(&sshTunnel, "tunnel", "t", false,
		"reach the remote through the server's WebSocket tunnel")
}

func init() {
	addSSHFlags(sshCmd)
	rootCmd.AddCommand(sshCmd)
}

// runSSHSession authorizes the referenced remote and hands the terminal to
// the external ssh client, directly or through the WebSocket tunnel.
func runSSHSession(cmd *cobra.Command, ref string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings)
	c, err := newClient(logger, settings)
	if err != nil {
		return err
	}

	remote, alias, err := authorizeTarget(cmd, c, logger, ref)
	if err != nil {
		return err
	}

	exe, err := findExecutable(sshExecutable, settings.SSH.Executable, "ssh")
	if err != nil {
		return err
	}
	template := []string{exe, "-l", "$user", "-p", "$port"}
	if identity := firstNonEmpty(sshIdentity, settings.SSH.IdentityFile); identity != "" {
		template = append(template, "-i", identity)
	}
	if sshDynamic != "" {
		template = append(template, "-D", sshDynamic)
	}
	template = append(template, "$host")

	if sshTunnel {
		return runTunneled(cmd.Context(), c, alias, remote, template, settings, logger)
	}
	return runDirect(template, remote)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
