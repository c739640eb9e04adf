package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

func TestParseManifest(t *testing.T) {
	t.Parallel()

	validYAML := `name: demo
context: context
factors:
  - path: lib.core
    domain: system
    type: library
    sources: ["*.c"]
  - path: app
    domain: system
    type: executable
    requires: [lib.core, libc]
    variants:
      profile: small
`

	brokenYAML := `name: demo
factors:
  - path: [app
`

	missingFactors := `name: demo
`

	badPath := `name: demo
factors:
  - path: "lib/core"
    domain: system
    type: library
`

	duplicate := `name: demo
factors:
  - path: app
    domain: system
    type: executable
  - path: app
    domain: system
    type: library
`

	cyclic := `name: demo
factors:
  - path: a
    domain: system
    type: library
    requires: [b]
  - path: b
    domain: system
    type: library
    requires: [a]
`

	cases := []struct {
		name     string
		contents string
		assert   func(t *testing.T, m *Manifest, err error)
	}{
		{
			name:     "valid manifest is parsed",
			contents: validYAML,
			assert: func(t *testing.T, m *Manifest, err error) {
				require.NoError(t, err)
				require.Equal(t, "demo", m.Name)
				require.Len(t, m.Factors, 2)
				require.Equal(t, []string{"lib.core", "libc"}, m.Factors[1].Requires)
				require.Equal(t, "small", m.Factors[1].Variants["profile"])
				require.Equal(t, "/work/context", m.ContextDir("/work"))
			},
		},
		{
			name:     "syntax errors report the line",
			contents: brokenYAML,
			assert: func(t *testing.T, _ *Manifest, err error) {
				var parseErr *constructerrors.ParseError
				require.True(t, errors.As(err, &parseErr))
				require.Positive(t, parseErr.Line)
			},
		},
		{
			name:     "factors are required",
			contents: missingFactors,
			assert: func(t *testing.T, _ *Manifest, err error) {
				var valErr *constructerrors.ValidationError
				require.True(t, errors.As(err, &valErr))
				require.Equal(t, "factors", valErr.Field)
			},
		},
		{
			name:     "factor paths are dotted",
			contents: badPath,
			assert: func(t *testing.T, _ *Manifest, err error) {
				var valErr *constructerrors.ValidationError
				require.True(t, errors.As(err, &valErr))
				require.Equal(t, "factors[0].path", valErr.Field)
			},
		},
		{
			name:     "duplicate paths are rejected",
			contents: duplicate,
			assert: func(t *testing.T, _ *Manifest, err error) {
				var valErr *constructerrors.ValidationError
				require.True(t, errors.As(err, &valErr))
				require.Equal(t, "factors[1].path", valErr.Field)
			},
		},
		{
			name:     "requirement cycles are listed",
			contents: cyclic,
			assert: func(t *testing.T, _ *Manifest, err error) {
				var cycleErr *constructerrors.CycleError
				require.True(t, errors.As(err, &cycleErr))
				require.Equal(t, []string{"a", "b", "a"}, cycleErr.Cycle)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/work/project.yaml", []byte(tc.contents), 0o644))

			m, err := ParseManifest(fs, "/work/project.yaml")
			tc.assert(t, m, err)
		})
	}
}

func TestParseManifestMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ParseManifest(afero.NewMemMapFs(), "/nope/project.yaml")
	var parseErr *constructerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "/nope/project.yaml", parseErr.Path)
}

func TestDetectCycleIgnoresSymbols(t *testing.T) {
	t.Parallel()

	require.Nil(t, detectCycle([]FactorSpec{
		{Path: "app", Requires: []string{"lib", "libc"}},
		{Path: "lib", Requires: []string{"libc"}},
	}))
}

func TestDetectCycleReportsPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b", "c", "a"}, detectCycle([]FactorSpec{
		{Path: "a", Requires: []string{"b"}},
		{Path: "b", Requires: []string{"c", "libc"}},
		{Path: "c", Requires: []string{"a"}},
	}))
}
