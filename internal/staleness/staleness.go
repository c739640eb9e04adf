// Package staleness decides whether a unit of work must run by comparing the
// modification times of its outputs and inputs.
package staleness

import (
	"time"

	"github.com/spf13/afero"
)

// Options carries the forced-rebuild flags of a build.
type Options struct {
	// Never marks every output as out of date.
	Never bool
	// Cascade extends Never to factors outside of the explicit selection.
	Cascade bool
	// Subfactor is set when the factor being checked was explicitly selected.
	Subfactor bool
}

// ForRebuild translates a rebuild level into options: 0 checks timestamps,
// 1 rebuilds the selected factors, 2 rebuilds everything.
func ForRebuild(level int) Options {
	switch {
	case level >= 2:
		return Options{Never: true, Cascade: true}
	case level == 1:
		return Options{Never: true}
	default:
		return Options{}
	}
}

// Filter reports whether outputs are already up to date with respect to inputs.
// A true result means the work can be skipped.
type Filter func(outputs, inputs []string) bool

// Updated returns whether outputs are up to date. It returns false when a
// forced rebuild applies, when any output is missing, or when any input is
// missing or newer than the oldest output. Without outputs there is nothing
// to compare against, so work is only current when it has no inputs either.
func Updated(fs afero.Fs, outputs, inputs []string, opts Options) bool {
	if opts.Never && (opts.Cascade || opts.Subfactor) {
		return false
	}
	if len(outputs) == 0 {
		return len(inputs) == 0
	}

	var oldest time.Time
	for i, output := range outputs {
		info, err := fs.Stat(output)
		if err != nil {
			return false
		}
		if i == 0 || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}

	for _, input := range inputs {
		info, err := fs.Stat(input)
		if err != nil || info.ModTime().After(oldest) {
			return false
		}
	}
	return true
}

// Always is the filter used once a factor is known to have changed.
func Always(_, _ []string) bool {
	return false
}

// Bind returns the Updated filter for fs and opts.
func Bind(fs afero.Fs, opts Options) Filter {
	return func(outputs, inputs []string) bool {
		return Updated(fs, outputs, inputs, opts)
	}
}
