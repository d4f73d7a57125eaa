package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var (
	scpExecutable string
	scpIdentity   string
	scpRecursive  bool
	scpTunnel     bool
)

var scpCmd = &cobra.Command{
	Use:   "scp <source> <destination>",
	Short: "Copy files from or to a remote",
	Long: "Copy files from or to a remote. Exactly one side names a remote " +
		"as [user@]alias:path; the other side is a local path.",
	Args: cobra.ExactArgs(2),
	RunE: runSCP,
}

func init() {
	scpCmd.Flags().StringVar(&scpExecutable, "scp", "",
		"scp client to run (default: scp on PATH)")
	scpCmd.Flags().StringVarP(&scpIdentity, "identity", "i", "",
		"identity file passed to the scp client")
	scpCmd.Flags().BoolVarP(&scpRecursive, "recursive", "r", false,
		"copy directories recursively")
	scpCmd.Flags().BoolVarP(&scpTunnel, "tunnel", "t", false,
		"reach the remote through the server's WebSocket tunnel")
	rootCmd.AddCommand(scpCmd)
}

// scpSide is one of scp's two positional arguments, either a plain local
// path or a [user@]alias:path remote reference.
type scpSide struct {
	target string // [user@]alias, empty for the local side
	path   string
}

func (s scpSide) isRemote() bool { return s.target != "" }

// parseSCPSide splits a positional argument on its first colon. Arguments
// without a colon, or whose first segment looks like a path, are local.
func parseSCPSide(arg string) scpSide {
	target, path, found := strings.Cut(arg, ":")
	if !found || target == "" || strings.ContainsAny(target, "/\\") {
		return scpSide{path: arg}
	}
	return scpSide{target: target, path: path}
}

func runSCP(cmd *cobra.Command, args []string) error {
	source := parseSCPSide(args[0])
	destination := parseSCPSide(args[1])
	if source.isRemote() == destination.isRemote() {
		return errors.New("exactly one of source and destination must name a remote as [user@]alias:path")
	}
	remoteSide := source
	if destination.isRemote() {
		remoteSide = destination
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings)
	c, err := newClient(logger, settings)
	if err != nil {
		return err
	}

	remote, alias, err := authorizeTarget(cmd, c, logger, remoteSide.target)
	if err != nil {
		return err
	}

	exe, err := findExecutable(scpExecutable, settings.SSH.SCPExecutable, "scp")
	if err != nil {
		return err
	}
	template := []string{exe}
	if scpRecursive {
		template = append(template, "-r")
	}
	if identity := firstNonEmpty(scpIdentity, settings.SSH.IdentityFile); identity != "" {
		template = append(template, "-i", identity)
	}
	template = append(template, "-P", "$port")
	for _, side := range []scpSide{source, destination} {
		if side.isRemote() {
			template = append(template, "$user@$host:"+side.path)
		} else {
			template = append(template, side.path)
		}
	}

	if scpTunnel {
		return runTunneled(cmd.Context(), c, alias, remote, template, settings, logger)
	}
	return runDirect(template, remote)
}
