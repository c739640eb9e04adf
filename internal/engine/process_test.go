package engine

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()

	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestExecSpawnerReportsExitCode(t *testing.T) {
	t.Parallel()

	sh := lookPath(t, "sh")
	var stderr bytes.Buffer
	proc, err := ExecSpawner{}.Spawn(context.Background(), ProcessSpec{
		Argv:   []string{sh, "-c", "echo failing >&2; exit 3"},
		Stderr: &stderr,
	})
	require.NoError(t, err)
	require.Positive(t, proc.PID())

	code, err := proc.Wait()
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, "failing\n", stderr.String())
}

func TestExecSpawnerCleanExitSurvivesLateCancel(t *testing.T) {
	t.Parallel()

	truePath := lookPath(t, "true")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc, err := ExecSpawner{}.Spawn(ctx, ProcessSpec{Argv: []string{truePath}})
	require.NoError(t, err)

	// The process is done before the build is cancelled.
	time.Sleep(200 * time.Millisecond)
	cancel()

	code, err := proc.Wait()
	require.NoError(t, err)
	require.Zero(t, code)
}

func TestExecSpawnerKillsOnCancel(t *testing.T) {
	t.Parallel()

	sleep := lookPath(t, "sleep")
	ctx, cancel := context.WithCancel(context.Background())

	proc, err := ExecSpawner{WaitDelay: time.Second}.Spawn(ctx, ProcessSpec{Argv: []string{sleep, "30"}})
	require.NoError(t, err)
	cancel()

	code, err := proc.Wait()
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, -1, code)
}

func TestExecSpawnerRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := ExecSpawner{}.Spawn(context.Background(), ProcessSpec{})
	require.Error(t, err)
}
