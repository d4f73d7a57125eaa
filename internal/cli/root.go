package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geofront/geofront-cli/internal/client"
	"github.com/geofront/geofront-cli/internal/constants"
	"github.com/geofront/geofront-cli/internal/utils"
	"github.com/geofront/geofront-cli/pkg/configdir"
	"github.com/geofront/geofront-cli/pkg/file"
	"github.com/geofront/geofront-cli/pkg/secrets"
)

var (
	flagDebug     bool
	flagNoBrowser bool
)

var rootCmd = &cobra.Command{
	Use:           "geofront-cli",
	Short:         "Geofront client utility",
	Long:          "Geofront client utility: authenticate to a Geofront server and open SSH sessions to the remotes it brokers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false,
		"enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagNoBrowser, "no-open-browser", "O", false,
		"print the authentication URL instead of opening a web browser")
}

// Execute runs the command tree and translates well-known failures into
// actionable messages before exiting.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, exitMessage(err))
		os.Exit(1)
	}
}

func exitMessage(err error) string {
	switch {
	case errors.Is(err, client.ErrNoToken):
		return "Not authenticated yet.\nTry `geofront-cli authenticate` first."
	case errors.Is(err, client.ErrExpiredToken):
		return "The stored session has expired.\nTry `geofront-cli authenticate` again."
	}
	var pve *client.ProtocolVersionError
	if errors.As(err, &pve) {
		return "The server seems incompatible with this geofront-cli release.\n" + pve.Error()
	}
	return err.Error()
}

// newLogger builds the process logger. The debug flag wins over the
// configured level.
func newLogger(settings *utils.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if settings != nil && settings.Log.Level != "" {
		if parsed, err := zerolog.ParseLevel(settings.Log.Level); err == nil {
			level = parsed
		}
	}
	if flagDebug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// loadSettings reads the optional config.yaml from the first search-path
// directory that has one. No file at all yields usable defaults.
func loadSettings() (*utils.Config, error) {
	fileClient := file.NewFileService()
	for _, dir := range configdir.LoadPaths(constants.ConfigResource) {
		path := filepath.Join(dir, constants.ConfigFilename)
		exists, err := fileClient.IsFileExists(path)
		if err != nil {
			return nil, err
		}
		if exists {
			return utils.LoadConfig(path, fileClient)
		}
	}
	return &utils.Config{}, nil
}

// resolveServerURL finds the configured server, preferring the config file
// over the server file written by `geofront-cli start`.
func resolveServerURL(settings *utils.Config) (string, error) {
	if settings.Server.URL != "" {
		return settings.Server.URL, nil
	}
	fileClient := file.NewFileService()
	for _, dir := range configdir.LoadPaths(constants.ConfigResource) {
		path := filepath.Join(dir, constants.ServerConfigFilename)
		exists, err := fileClient.IsFileExists(path)
		if err != nil {
			return "", err
		}
		if !exists {
			continue
		}
		raw, err := fileClient.ReadFile(path)
		if err != nil {
			return "", err
		}
		if url := strings.TrimSpace(raw); url != "" {
			return url, nil
		}
	}
	return "", errors.New("no Geofront server is configured yet; try `geofront-cli start` first")
}

// newClient wires the session client against the configured server and the
// on-disk credential store.
func newClient(logger zerolog.Logger, settings *utils.Config) (*client.Client, error) {
	serverURL, err := resolveServerURL(settings)
	if err != nil {
		return nil, err
	}
	saveDir, err := configdir.SavePath(constants.ConfigResource)
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{
		ServerURL:  serverURL,
		TokenStore: secrets.NewFileStore(saveDir, constants.ConfigResource),
		Logger:     logger,
	})
}

// browserAuthenticator hands the ceremony URL to the user, through their web
// browser unless --no-open-browser asked for plain output, then waits for
// them to report the ceremony done.
func browserAuthenticator(cmd *cobra.Command) client.Authenticator {
	return func(ctx context.Context, nextURL string) error {
		out := cmd.OutOrStdout()
		if flagNoBrowser {
			fmt.Fprintln(out, "Continue the authentication in your web browser:")
			fmt.Fprintf(out, "  %s\n", nextURL)
		} else {
			fmt.Fprintln(out, "Continuing the authentication in your web browser...")
			if err := browser.OpenURL(nextURL); err != nil {
				fmt.Fprintln(out, "Could not open a web browser; visit this URL yourself:")
				fmt.Fprintf(out, "  %s\n", nextURL)
			}
		}
		fmt.Fprint(out, "Press return when you have finished: ")
		if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil && err != io.EOF {
			return err
		}
		return nil
	}
}
