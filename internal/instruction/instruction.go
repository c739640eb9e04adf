// Package instruction defines the units of work emitted for a factor.
package instruction

import (
	"context"
	"strings"

	"github.com/alexisbeaulieu97/construct/internal/factor"
)

// Kind tags an instruction.
type Kind string

const (
	// Directory ensures Output exists as a directory.
	Directory Kind = "directory"
	// Link creates or replaces Output as a symbolic link to Sources[0].
	Link Kind = "link"
	// Call invokes Func synchronously.
	Call Kind = "call"
	// Execute spawns Argv with stdin and stdout attached to the null device.
	Execute Kind = "execute"
	// ExecuteRedirection spawns Argv writing stdout to Output.
	ExecuteRedirection Kind = "execute-redirection"
	// ExecuteStdio spawns Argv reading stdin from Sources[0] and writing stdout to Output.
	ExecuteStdio Kind = "execute-stdio"
)

// IsProcess reports whether the kind spawns an external process.
func (k Kind) IsProcess() bool {
	switch k {
	case Execute, ExecuteRedirection, ExecuteStdio:
		return true
	default:
		return false
	}
}

// IsSetup reports whether the kind only prepares the filesystem.
func (k Kind) IsSetup() bool {
	return k == Directory || k == Link
}

// Func is the body of a call instruction.
type Func func(ctx context.Context) error

// Instruction is one atomic unit of work owned by a factor.
type Instruction struct {
	Factor  factor.ID
	Kind    Kind
	Argv    []string
	Log     string
	Sources []string
	Output  string
	// Name identifies the function of a call instruction.
	Name string
	Func Func
}

// Stdin is the file attached to the process's standard input.
func (i Instruction) Stdin() string {
	if i.Kind == ExecuteStdio && len(i.Sources) > 0 {
		return i.Sources[0]
	}
	return ""
}

// Stdout is the file attached to the process's standard output.
func (i Instruction) Stdout() string {
	if i.Kind == ExecuteStdio || i.Kind == ExecuteRedirection {
		return i.Output
	}
	return ""
}

// Command renders the argument vector with its redirections.
func (i Instruction) Command() string {
	var b strings.Builder
	switch i.Kind {
	case Call:
		b.WriteString("call " + i.Name)
	case Directory:
		b.WriteString("mkdir " + i.Output)
	case Link:
		src := ""
		if len(i.Sources) > 0 {
			src = i.Sources[0]
		}
		b.WriteString("link " + src + " " + i.Output)
	default:
		b.WriteString(strings.Join(i.Argv, " "))
	}
	if in := i.Stdin(); in != "" {
		b.WriteString(" <" + in)
	}
	if out := i.Stdout(); out != "" {
		b.WriteString(" >" + out)
	}
	return b.String()
}

// Batch is an ordered group of instructions that completes as a unit.
type Batch []Instruction

// Trivial reports whether every instruction in the batch is filesystem setup.
func (b Batch) Trivial() bool {
	for _, ins := range b {
		if !ins.Kind.IsSetup() {
			return false
		}
	}
	return true
}
