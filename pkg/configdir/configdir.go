package configdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultSystemDirs is searched after the user directory when
// XDG_CONFIG_DIRS is unset.
const defaultSystemDirs = "/etc/xdg"

// LoadPaths returns the ordered list of directories that may hold
// configuration files for the given resource. The user's own directory
// comes first, so its entries take precedence over system-wide ones.
func LoadPaths(resource string) []string {
	var paths []string
	if dir := userBaseDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, resource))
	}
	dirs := os.Getenv("XDG_CONFIG_DIRS")
	if dirs == "" {
		dirs = defaultSystemDirs
	}
	for _, dir := range filepath.SplitList(dirs) {
		if dir != "" {
			paths = append(paths, filepath.Join(dir, resource))
		}
	}
	return paths
}

// SavePath returns the writable configuration directory for the given
// resource, creating it when it does not exist yet.
func SavePath(resource string) (string, error) {
	base := userBaseDir()
	if base == "" {
		return "", fmt.Errorf("cannot resolve a writable configuration directory")
	}
	dir := filepath.Join(base, resource)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create configuration directory %s: %w", dir, err)
	}
	return dir, nil
}

func userBaseDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}
