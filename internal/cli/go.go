package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var goCmd = &cobra.Command{
	Use:   "go",
	Short: "Pick a remote interactively and SSH to it",
	Args:  cobra.NoArgs,
	RunE:  runGo,
}

func init() {
	addSSHFlags(goCmd)
	rootCmd.AddCommand(goCmd)
}

func runGo(cmd *cobra.Command, args []string) error {
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
	if len(remotes) == 0 {
		return errors.New("no remotes are available to you")
	}

	lines := formatRemoteList(remotes, true)
	out := cmd.OutOrStdout()
	for i, line := range lines {
		fmt.Fprintf(out, "%3d  %s\n", i+1, line)
	}

	in := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprintf(out, "Remote to connect to (1-%d): ", len(lines))
		answer, err := in.ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("failed to read the selection: %w", err)
		}
		choice, convErr := strconv.Atoi(strings.TrimSpace(answer))
		if convErr != nil || choice < 1 || choice > len(lines) {
			fmt.Fprintln(out, "Not a listed number.")
			continue
		}
		alias := strings.Fields(lines[choice-1])[0]
		return runSSHSession(cmd, alias)
	}
}
