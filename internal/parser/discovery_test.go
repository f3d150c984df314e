package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/testutil"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	anchor := time.Date(2024, 1, 15, 18, 30, 0, 0, time.Local)

	a := testutil.WriteServerLog(t, root, "Server1", "profile", "server_console.log", "", anchor)
	b := testutil.WriteServerLog(t, root, "Server2", "logs", "arma3server.log", "", anchor)
	testutil.WriteServerLog(t, root, "Server2", "logs", "arma3server.rpt", "", anchor)

	// a directory without addons is not a server
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backup", "profile"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backup", "profile", "old.log"), nil, 0644))

	var servers []string
	files, err := Discover([]string{root}, "", func(dir string) {
		servers = append(servers, filepath.Base(dir))
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Server1", "Server2"}, servers)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.True(t, f.Anchor.Equal(anchor), "anchor of %s = %v", f.Path, f.Anchor)
	}
	assert.ElementsMatch(t, []string{a, b}, paths)
}

func TestDiscover_Pattern(t *testing.T) {
	root := t.TempDir()
	testutil.WriteServerLog(t, root, "Server1", "profile", "server.log", "", time.Time{})
	rpt := testutil.WriteServerLog(t, root, "Server1", "profile", "server.rpt", "", time.Time{})

	files, err := Discover([]string{root}, "*.rpt", nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, rpt, files[0].Path)

	_, err = Discover([]string{root}, "[", nil)
	assert.Error(t, err)
}

func TestDiscover_OverlappingRoots(t *testing.T) {
	root := t.TempDir()
	testutil.WriteServerLog(t, root, "Server1", "profile", "server.log", "", time.Time{})

	files, err := Discover([]string{root, filepath.Join(root, "Server1")}, "", nil)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "nope")}, "", nil)
	assert.Error(t, err)
}

func TestFindServerDirs_NestedAddons(t *testing.T) {
	root := t.TempDir()
	// mod folders carry their own addons directory
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Server1", "addons", "@mod", "addons"), 0755))

	dirs, err := FindServerDirs([]string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "Server1")}, dirs)
}

