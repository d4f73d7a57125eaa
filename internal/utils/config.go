package utils

import (
	"time"

	"github.com/geofront/geofront-cli/pkg/file"
)

// Config represents the structure of the optional configuration file.
type Config struct {
	Server struct {
		URL string `yaml:"url"` // overrides the server file from the config dir when set
	} `yaml:"server"`

	SSH struct {
		Executable    string `yaml:"executable"`     // ssh client binary, discovered on PATH when empty
		SCPExecutable string `yaml:"scp_executable"` // scp client binary, discovered on PATH when empty
		IdentityFile  string `yaml:"identity_file"`  // default identity file passed as -i
	} `yaml:"ssh"`

	Tunnel struct {
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // WebSocket handshake timeout
	} `yaml:"tunnel"`

	Log struct {
		Level string `yaml:"level"` // zerolog level name
	} `yaml:"log"`
}

// LoadConfig loads the YAML configuration from the specified file. A missing
// file is not an error; every field has a working zero value.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &config, nil
	}
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
