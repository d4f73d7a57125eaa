package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/client"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the geofront-cli version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), client.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
