package configdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPaths_UserDirFirst(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/home/alice/.config")
	t.Setenv("XDG_CONFIG_DIRS", "/etc/xdg:/opt/xdg")

	paths := LoadPaths("geofront-cli")

	require.Len(t, paths, 3)
	assert.Equal(t, "/home/alice/.config/geofront-cli", paths[0])
	assert.Equal(t, "/etc/xdg/geofront-cli", paths[1])
	assert.Equal(t, "/opt/xdg/geofront-cli", paths[2])
}

func TestLoadPaths_DefaultSystemDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/home/alice/.config")
	t.Setenv("XDG_CONFIG_DIRS", "")

	paths := LoadPaths("geofront-cli")

	require.Len(t, paths, 2)
	assert.Equal(t, "/etc/xdg/geofront-cli", paths[1])
}

func TestSavePath_CreatesDirectory(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := SavePath("geofront-cli")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "geofront-cli"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
