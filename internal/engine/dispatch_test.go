package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/instruction"
)

func linkScheduler(t *testing.T) (*Scheduler, string) {
	t.Helper()

	base := t.TempDir()
	fs := afero.NewBasePathFs(afero.NewOsFs(), base)
	require.NoError(t, fs.MkdirAll("/src", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/main.c", []byte("int main;"), 0o644))
	return New(factor.NewProject("demo", "/src"), nil, Options{FS: fs}), base
}

func TestSetupLinkReplacesOutput(t *testing.T) {
	t.Parallel()

	s, base := linkScheduler(t)
	require.NoError(t, afero.WriteFile(s.fs, "/out/main.c", []byte("stale"), 0o644))

	err := s.setup(instruction.Instruction{
		Factor:  "app",
		Kind:    instruction.Link,
		Sources: []string{"/src/main.c"},
		Output:  "/out/main.c",
	})
	require.NoError(t, err)

	info, err := os.Lstat(filepath.Join(base, "out", "main.c"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink)

	data, err := afero.ReadFile(s.fs, "/out/main.c")
	require.NoError(t, err)
	require.Equal(t, "int main;", string(data))
}

func TestSetupLinkCreatesParents(t *testing.T) {
	t.Parallel()

	s, base := linkScheduler(t)
	require.NoError(t, s.setup(instruction.Instruction{
		Kind:    instruction.Link,
		Sources: []string{"/src/main.c"},
		Output:  "/out/nested/main.c",
	}))

	target, err := os.Readlink(filepath.Join(base, "out", "nested", "main.c"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "src", "main.c"), target)
}

func TestSetupLinkReportsMissingTarget(t *testing.T) {
	t.Parallel()

	s, _ := linkScheduler(t)
	require.NoError(t, afero.WriteFile(s.fs, "/out/main.c", []byte("kept"), 0o644))

	err := s.setup(instruction.Instruction{
		Kind:    instruction.Link,
		Sources: []string{"/src/missing.c"},
		Output:  "/out/main.c",
	})
	require.ErrorIs(t, err, os.ErrNotExist)

	// The previous output is left in place.
	data, err := afero.ReadFile(s.fs, "/out/main.c")
	require.NoError(t, err)
	require.Equal(t, "kept", string(data))
}

func TestSetupLinkRequiresTarget(t *testing.T) {
	t.Parallel()

	s, _ := linkScheduler(t)
	err := s.setup(instruction.Instruction{Kind: instruction.Link, Output: "/out/main.c"})
	require.ErrorContains(t, err, "has no target")
}

func TestSetupLinkNeedsLinkingFilesystem(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/main.c", nil, 0o644))
	s := New(factor.NewProject("demo", "/src"), nil, Options{FS: fs})

	err := s.setup(instruction.Instruction{
		Kind:    instruction.Link,
		Sources: []string{"/src/main.c"},
		Output:  "/out/main.c",
	})
	require.ErrorContains(t, err, "cannot create links")
}

func TestSetupDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := New(factor.NewProject("demo", "/src"), nil, Options{FS: fs})

	require.NoError(t, s.setup(instruction.Instruction{Kind: instruction.Directory, Output: "/out/a/b"}))
	exists, err := afero.DirExists(fs, "/out/a/b")
	require.NoError(t, err)
	require.True(t, exists)
}
