package constants

const (
	// ConfigResource is the per-application configuration directory name
	// looked up across the XDG search path.
	ConfigResource = "geofront-cli"

	// ServerConfigFilename holds the configured Geofront server URL.
	ServerConfigFilename = "server"

	// ProxyPortMapFilename holds the remote-to-local-port mapping table.
	ProxyPortMapFilename = "proxyports.csv"

	// ConfigFilename is the optional YAML settings file.
	ConfigFilename = "config.yaml"
)
