// Package adapters provides the command constructors and internal calls
// every context can reference without a toolchain of its own.
package adapters

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/build"
)

// Register installs the built-in constructors and calls into r. Calls
// operate on fs.
func Register(r *build.Registry, fs afero.Fs) error {
	constructors := map[string]build.Constructor{
		"disabled":      Disabled,
		"transparent":   Transparent,
		"void":          Void,
		"standard-io":   StandardIO,
		"standard-out":  StandardOut,
		"concatenation": Concatenation,
		"empty":         Empty,
	}
	for name, ctor := range constructors {
		if err := r.Register(name, ctor); err != nil {
			return err
		}
	}
	return r.RegisterCall("copy", Copy(fs))
}

// Default returns a registry holding only the built-ins.
func Default(fs afero.Fs) *build.Registry {
	r := build.NewRegistry()
	if err := Register(r, fs); err != nil {
		// Registration into an empty registry cannot collide.
		panic(err)
	}
	return r
}

// Disabled marks a source language or factor type as producing nothing.
func Disabled(build.Request) ([]string, error) {
	return nil, build.ErrDisabled
}

// Transparent links the single input to the output.
func Transparent(req build.Request) ([]string, error) {
	if len(req.Inputs) != 1 {
		return nil, fmt.Errorf("transparent expects one input, got %d", len(req.Inputs))
	}
	return []string{"", "-f", req.Inputs[0], req.Output}, nil
}

// Void runs a command whose purpose is to report that the factor could not
// be processed.
func Void(req build.Request) ([]string, error) {
	return append([]string{"", req.Output}, req.Inputs...), nil
}

// StandardIO runs the command without arguments; it operates on standard I/O.
func StandardIO(build.Request) ([]string, error) {
	return []string{""}, nil
}

// StandardOut passes the inputs as arguments and captures standard output.
func StandardOut(req build.Request) ([]string, error) {
	return append([]string{""}, req.Inputs...), nil
}

// Concatenation joins the inputs in order. It requires an output redirect.
func Concatenation(req build.Request) ([]string, error) {
	return append([]string{"cat"}, req.Inputs...), nil
}

// Empty runs a command without arguments to produce a constant output.
func Empty(build.Request) ([]string, error) {
	return []string{"empty"}, nil
}

// Copy concatenates the sources of a call into its output.
func Copy(fs afero.Fs) build.CallFunc {
	return func(ctx context.Context, req build.CallRequest) error {
		if err := fs.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
			return err
		}
		out, err := fs.Create(req.Output)
		if err != nil {
			return err
		}
		defer out.Close()

		for _, src := range req.Sources {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := appendFile(fs, out, src); err != nil {
				return err
			}
		}
		return nil
	}
}

func appendFile(fs afero.Fs, out io.Writer, src string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(out, in)
	return err
}
