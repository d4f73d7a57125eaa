package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/models"
)

var remotesVerbose bool

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "List the remotes available to you",
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
		remotes, err := c.Remotes(cmd.Context())
		if err != nil {
			return err
		}
		for _, line := range formatRemoteList(remotes, remotesVerbose) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	remotesCmd.Flags().BoolVarP(&remotesVerbose, "verbose", "v", false,
		"show the address behind each alias")
	rootCmd.AddCommand(remotesCmd)
}

// formatRemoteList renders the remote table sorted by alias. The verbose
// form aligns the aliases into a column so the addresses line up.
func formatRemoteList(remotes map[string]models.Remote, verbose bool) []string {
	aliases := make([]string, 0, len(remotes))
	widest := 0
	for alias := range remotes {
		aliases = append(aliases, alias)
		if len(alias) > widest {
			widest = len(alias)
		}
	}
	sort.Strings(aliases)

	lines := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if !verbose {
			lines = append(lines, alias)
			continue
		}
		remote := remotes[alias]
		lines = append(lines, fmt.Sprintf("%-*s  %s@%s:%s",
			widest, alias, remote.User, remote.Host, strconv.Itoa(remote.Port)))
	}
	return lines
}
