package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helpers "git.home.luguber.info/inful/ductgallery/internal/testutil/testutils"
)

func initRepo(t *testing.T, commit bool) (string, string) {
	t.Helper()
	_, wt, root := helpers.SetupTestGitRepo(t)
	if !commit {
		return root, ""
	}
	return root, helpers.CommitFile(t, wt, "con-duct-gallery.yaml", "examples: []\n")
}

func TestDiscover_FromSubdirectory(t *testing.T) {
	root, commit := initRepo(t, true)
	sub := filepath.Join(root, "examples", "demo")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	info, err := Discover(sub)
	require.NoError(t, err)
	assert.Equal(t, root, info.Root)
	assert.Equal(t, commit, info.Commit)
	assert.NotEmpty(t, info.Branch)
	assert.Equal(t, root, Root(sub))
}

func TestDiscover_UnbornHead(t *testing.T) {
	root, _ := initRepo(t, false)
	info, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, root, info.Root)
	assert.Empty(t, info.Commit)
}

func TestDiscover_NotRepository(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	_, err = Discover(dir)
	require.ErrorIs(t, err, ErrNotRepository)
	assert.Equal(t, dir, Root(dir))
}
