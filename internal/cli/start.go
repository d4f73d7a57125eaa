package cli

import (
	"bufio"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/constants"
	"github.com/geofront/geofront-cli/pkg/configdir"
	"github.com/geofront/geofront-cli/pkg/file"
)

var startForce bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Configure the Geofront server and authenticate to it",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&startForce, "force", "f", false,
		"replace an already configured server")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	fileClient := file.NewFileService()
	for _, dir := range configdir.LoadPaths(constants.ConfigResource) {
		path := filepath.Join(dir, constants.ServerConfigFilename)
		exists, err := fileClient.IsFileExists(path)
		if err != nil {
			return err
		}
		if exists && !startForce {
			return fmt.Errorf("a Geofront server is already configured in %s; use --force to replace it", path)
		}
	}

	serverURL, err := promptServerURL(cmd)
	if err != nil {
		return err
	}

	saveDir, err := configdir.SavePath(constants.ConfigResource)
	if err != nil {
		return err
	}
	path := filepath.Join(saveDir, constants.ServerConfigFilename)
	if err := fileClient.WriteFile(path, serverURL+"\n"); err != nil {
		return fmt.Errorf("failed to save the server configuration to %s: %w", path, err)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings)
	logger.Debug().Str("url", serverURL).Str("path", path).Msg("Geofront server configured")

	c, err := newClient(logger, settings)
	if err != nil {
		return err
	}
	return runAuthenticate(cmd, c, logger)
}

// promptServerURL asks for the server URL until a usable one comes in.
// Plain-HTTP servers need an extra confirmation since the session credential
// would travel unencrypted.
func promptServerURL(cmd *cobra.Command) (string, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	for {
		fmt.Fprint(out, "Geofront server URL: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read the server URL: %w", err)
		}
		raw := strings.TrimSpace(line)
		u, parseErr := url.Parse(raw)
		if parseErr != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			fmt.Fprintf(out, "%q is not a valid https:// or http:// URL.\n", raw)
			continue
		}
		if u.Scheme == "http" {
			fmt.Fprint(out, "The connection would not be encrypted. Continue anyway? [y/N] ")
			answer, _ := in.ReadString('\n')
			if !strings.HasPrefix(strings.TrimSpace(strings.ToLower(answer)), "y") {
				continue
			}
		}
		return raw, nil
	}
}
