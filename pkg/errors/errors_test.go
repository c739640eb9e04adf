package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("project.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "project.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "project.yaml:12")
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("factors[1].requires", "references unknown symbol", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "factors[1].requires", validationErr.Field)
	require.Contains(t, validationErr.Message, "unknown symbol")
}

func TestToolStageFailureIncludesCommandContext(t *testing.T) {
	t.Parallel()

	err := NewToolStageFailure("lib.core", "cc -c a.c", 4242, 1, "/tmp/a.log", []string{"a.c:1: error"}, nil)

	var failure *ToolStageFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "lib.core", failure.Factor)
	require.Equal(t, 1, failure.ExitCode)
	require.Contains(t, err.Error(), "cc -c a.c")
	require.Contains(t, err.Error(), "4242")
}

func TestInstructionCallErrorWrapsCause(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("disk full")
	err := NewInstructionCallError("lib.core", "copy", underlying)

	var callErr *InstructionCallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, "copy", callErr.Call)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestSetupErrorNamesPath(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("permission denied")
	err := NewSetupError("lib.core", "link", "/out/lib.core/main.o", underlying)

	var setup *SetupError
	require.ErrorAs(t, err, &setup)
	require.Equal(t, "link", setup.Kind)
	require.Equal(t, "link /out/lib.core/main.o failed on factor lib.core: permission denied", err.Error())
	require.True(t, stdErrors.Is(err, underlying))
}

func TestMissingMechanismNamesDomain(t *testing.T) {
	t.Parallel()

	err := NewMissingMechanismError("web.assets", "javascript")

	var missing *MissingMechanismError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "javascript", missing.Domain)
	require.Contains(t, err.Error(), "javascript")
}

func TestCycleErrorRendersPath(t *testing.T) {
	t.Parallel()

	err := NewCycleError("factors", []string{"a", "b", "a"})
	require.Equal(t, "factors: dependency cycle detected: a -> b -> a", err.Error())
}

func TestAdapterErrorWrapsCause(t *testing.T) {
	t.Parallel()

	root := fmt.Errorf("no constructor registered")
	err := NewAdapterError("standard-out", root)

	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	require.True(t, stdErrors.Is(err, root))
	require.Equal(t, "adapter standard-out: no constructor registered", err.Error())
}
