package revision

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte("name: demo\n"), 0o644))
	_, err = wt.Add("project.yaml")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Construct",
			Email: "construct@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestHeadReadsCommit(t *testing.T) {
	t.Parallel()

	dir, hash := initGitRepo(t)
	sub := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	info, err := Head(sub)
	require.NoError(t, err)
	require.Equal(t, hash, info.Hash)
	require.False(t, info.Dirty)
	require.Equal(t, hash[:ShortLength], info.Short())
}

func TestHeadReportsDirtyWorktree(t *testing.T) {
	t.Parallel()

	dir, _ := initGitRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte("name: changed\n"), 0o644))

	info, err := Head(dir)
	require.NoError(t, err)
	require.True(t, info.Dirty)
	require.Contains(t, info.Short(), "-dirty")
}

func TestHeadOutsideRepository(t *testing.T) {
	t.Parallel()

	info, err := Head(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, info.Hash)
	require.Empty(t, info.Short())
}
