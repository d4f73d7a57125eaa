package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var keysVerbose bool

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List your public keys registered to the server",
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
		keys, err := c.Keys(cmd.Context())
		if err != nil {
			return err
		}

		fingerprints := make([]string, 0, len(keys))
		for fingerprint := range keys {
			fingerprints = append(fingerprints, fingerprint)
		}
		sort.Strings(fingerprints)
		for _, fingerprint := range fingerprints {
			if keysVerbose {
				fmt.Fprintln(cmd.OutOrStdout(), keys[fingerprint])
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), fingerprint)
			}
		}
		return nil
	},
}

func init() {
	keysCmd.Flags().BoolVarP(&keysVerbose, "verbose", "v", false,
		"print the full authorized_keys lines instead of fingerprints")
	rootCmd.AddCommand(keysCmd)
}
