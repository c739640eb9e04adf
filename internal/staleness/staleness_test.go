package staleness

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, files map[string]time.Time) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, mtime := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(path), 0o644))
		require.NoError(t, fs.Chtimes(path, mtime, mtime))
	}
	return fs
}

func TestUpdated(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := fixture(t, map[string]time.Time{
		"/src/a.c":   base,
		"/src/b.c":   base.Add(time.Minute),
		"/out/old.o": base.Add(-time.Hour),
		"/out/new.o": base.Add(time.Hour),
	})

	tests := []struct {
		name    string
		outputs []string
		inputs  []string
		opts    Options
		want    bool
	}{
		{name: "no outputs", outputs: nil, inputs: []string{"/src/a.c"}, want: false},
		{name: "no outputs and no inputs", want: true},
		{name: "no outputs and no inputs under cascade", opts: Options{Never: true, Cascade: true}, want: false},
		{name: "output older than source", outputs: []string{"/out/old.o"}, inputs: []string{"/src/a.c"}, want: false},
		{name: "output newer than source", outputs: []string{"/out/new.o"}, inputs: []string{"/src/a.c"}, want: true},
		{name: "oldest output decides", outputs: []string{"/out/new.o", "/out/old.o"}, inputs: []string{"/src/a.c"}, want: false},
		{name: "missing output", outputs: []string{"/out/missing.o"}, inputs: []string{"/src/a.c"}, want: false},
		{name: "missing input", outputs: []string{"/out/new.o"}, inputs: []string{"/src/missing.c"}, want: false},
		{name: "equal times are current", outputs: []string{"/src/b.c"}, inputs: []string{"/src/b.c"}, want: true},
		{name: "never with cascade", outputs: []string{"/out/new.o"}, inputs: []string{"/src/a.c"}, opts: Options{Never: true, Cascade: true}, want: false},
		{name: "never on selected factor", outputs: []string{"/out/new.o"}, inputs: []string{"/src/a.c"}, opts: Options{Never: true, Subfactor: true}, want: false},
		{name: "never outside selection checks times", outputs: []string{"/out/new.o"}, inputs: []string{"/src/a.c"}, opts: Options{Never: true}, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Updated(fs, tc.outputs, tc.inputs, tc.opts))
		})
	}
}

func TestForRebuild(t *testing.T) {
	t.Parallel()

	require.Equal(t, Options{}, ForRebuild(0))
	require.Equal(t, Options{Never: true}, ForRebuild(1))
	require.Equal(t, Options{Never: true, Cascade: true}, ForRebuild(2))
}

func TestAlways(t *testing.T) {
	t.Parallel()

	require.False(t, Always(nil, nil))
	require.False(t, Always([]string{"/out"}, nil))
}

func TestBindUsesFilesystem(t *testing.T) {
	t.Parallel()

	base := time.Now()
	fs := fixture(t, map[string]time.Time{"/in": base, "/out": base.Add(time.Second)})
	filter := Bind(fs, Options{})
	require.True(t, filter([]string{"/out"}, []string{"/in"}))
	require.False(t, filter([]string{"/in"}, []string{"/out"}))
}
