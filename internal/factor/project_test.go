package factor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

func newTestProject(t *testing.T) *Project {
	t.Helper()

	p := NewProject("example", "/src/example")
	p.DefineSymbol("libc", SymbolTree{
		"system": {"library": {"/usr/lib": {"c", "m"}}},
	})
	require.NoError(t, p.AddFactor(&Factor{Path: "lib.core", Domain: "system", Type: TypeLibrary, Symbols: []string{"libc"}}))
	require.NoError(t, p.AddFactor(&Factor{Path: "bin.tool", Domain: "system", Type: TypeExecutable, Symbols: []string{"lib.core", "libc"}}))
	return p
}

func TestRequirementsResolveSymbolsThenFactors(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)

	deps, err := p.Requirements("bin.tool")
	require.NoError(t, err)
	require.Len(t, deps, 3)
	require.Equal(t, ID("lib.core"), deps[0])

	for _, id := range deps[1:] {
		node, ok := p.Node(id)
		require.True(t, ok)
		sf, isSystem := node.(*SystemFactor)
		require.True(t, isSystem)
		require.Equal(t, "/usr/lib", sf.Integral)
	}
}

func TestSystemFactorsHaveNoRequirements(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	deps, err := p.Requirements("lib.core")
	require.NoError(t, err)

	for _, id := range deps {
		sub, err := p.Requirements(id)
		require.NoError(t, err)
		require.Empty(t, sub)
	}
}

func TestUnresolvedSymbolFailsValidation(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	require.NoError(t, p.AddFactor(&Factor{Path: "bin.broken", Symbols: []string{"nowhere"}}))

	err := p.Validate()
	var validationErr *constructerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Message, "nowhere")
	require.Empty(t, p.Descend("bin.broken"))
}

func TestDuplicateFactorRejected(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	err := p.AddFactor(&Factor{Path: "lib.core"})
	require.Error(t, err)
}

func TestGroupByPair(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	deps, err := p.Requirements("bin.tool")
	require.NoError(t, err)

	groups := p.Group(deps)
	require.Len(t, groups[Pair{Domain: "system", Type: TypeLibrary}], 3)
}

func TestFactorNaming(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	f, ok := p.Factor("lib.core")
	require.True(t, ok)
	require.Equal(t, "core", f.Name())
	require.Equal(t, "lib", f.Package())
	require.Equal(t, "example.lib.core", f.QualifiedName())

	f.Dir = "/src/example/lib/core"
	require.Equal(t, filepath.Join("sub", "a.c"), f.SourcePoint("/src/example/lib/core/sub/a.c"))
	require.Equal(t, "b.c", f.SourcePoint("/elsewhere/b.c"))
}
