package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/construct/internal/engine"
)

const contextLayer = `
context:
  name: host
syntax:
  target-file-extensions:
    c: "c h"
    txt: "txt"
mechanisms:
  resource:
    variants:
      system: data
    transformations:
      default:
        interface: standard-out
        method: internal
        command: copy
  system:
    variants:
      system: linux
    ignore-extensions: [h]
    transformations:
      c:
        interface: standard-out
        command: /usr/bin/cc
        options: [-c]
  system-debug:
    inherit: system
    variants:
      form: debug
    transformations:
      c:
        options: [-c, -g]
`

const manifestTemplate = `
name: demo
context: context
factors:
  - path: assets
    domain: resource
    type: executable
  - path: app
    domain: %s
    type: executable
    requires: [assets]
`

// writeProject lays out a project whose app factor uses domain and returns
// the manifest path.
func writeProject(t *testing.T, domain string) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"context/mechanisms/host.yaml": contextLayer,
		"project.yaml":                 fmt.Sprintf(manifestTemplate, domain),
		"assets/notes.txt":             "notes",
		"app/main.c":                   "int main(void) { return 0; }",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return filepath.Join(root, "project.yaml")
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	cmd.SetArgs(args)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	err := cmd.Execute()
	return buf.String(), err
}

// useSpawner replaces the process spawner of builds for the test.
func useSpawner(t *testing.T, s engine.Spawner) {
	t.Helper()
	original := spawner
	spawner = s
	t.Cleanup(func() { spawner = original })
}

// exitSpawner runs no process; every spawned instruction exits with code.
type exitSpawner struct {
	mu   sync.Mutex
	code int
	argv [][]string
}

func (s *exitSpawner) Spawn(_ context.Context, spec engine.ProcessSpec) (engine.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.argv = append(s.argv, spec.Argv)
	if s.code != 0 {
		fmt.Fprintln(spec.Stderr, "fatal error: no input files")
	}
	return exitProcess{pid: 4000 + len(s.argv), code: s.code}, nil
}

type exitProcess struct {
	pid  int
	code int
}

func (p exitProcess) PID() int { return p.pid }

func (p exitProcess) Wait() (int, error) { return p.code, nil }
