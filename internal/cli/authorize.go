package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/client"
	"github.com/geofront/geofront-cli/internal/constants"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize <alias>",
	Short: "Authorize access to a remote without connecting to it",
	Args:  cobra.ExactArgs(1),
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
		flow := &client.AuthorizeFlow{
			Client:       c,
			Authenticate: browserAuthenticator(cmd),
			MaxRetries:   constants.AuthorizeRetries,
			Logger:       logger,
		}
		remote, err := flow.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authorized: %s\n", remote)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
}
