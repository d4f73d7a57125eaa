package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/pkg/sshkey"
)

var masterkeyVerbose bool

var masterkeyCmd = &cobra.Command{
	Use:   "masterkey",
	Short: "Show the server's master public key",
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
		line, err := c.MasterKey(cmd.Context())
		if err != nil {
			return err
		}
		if masterkeyVerbose {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		}
		key, err := sshkey.Parse(line)
		if err != nil {
			return fmt.Errorf("the server sent an unreadable master key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), key.Fingerprint())
		return nil
	},
}

func init() {
	masterkeyCmd.Flags().BoolVarP(&masterkeyVerbose, "verbose", "v", false,
		"print the full authorized_keys line instead of the fingerprint")
	rootCmd.AddCommand(masterkeyCmd)
}
