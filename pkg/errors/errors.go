package errors

import (
	"fmt"
	"strings"
)

// ParseError represents a manifest or descriptor decoding failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures manifest and descriptor validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ToolStageFailure records an external process that exited non-zero.
type ToolStageFailure struct {
	Factor   string
	Command  string
	PID      int
	ExitCode int
	Log      string
	Tail     []string
	Err      error
}

// NewToolStageFailure constructs a ToolStageFailure.
func NewToolStageFailure(factor, command string, pid, exitCode int, log string, tail []string, err error) error {
	return &ToolStageFailure{
		Factor:   factor,
		Command:  command,
		PID:      pid,
		ExitCode: exitCode,
		Log:      log,
		Tail:     tail,
		Err:      err,
	}
}

func (e *ToolStageFailure) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("tool stage failure on factor %s: [%d] exited %d: %s", e.Factor, e.PID, e.ExitCode, e.Command)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error, if the process could not be waited on.
func (e *ToolStageFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InstructionCallError captures a failed in-process call instruction.
type InstructionCallError struct {
	Factor string
	Call   string
	Err    error
}

// NewInstructionCallError constructs an InstructionCallError.
func NewInstructionCallError(factor, call string, err error) error {
	return &InstructionCallError{Factor: factor, Call: call, Err: err}
}

func (e *InstructionCallError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("call (%s) raised on factor %s: %v", e.Call, e.Factor, e.Err)
}

// Unwrap exposes the root error.
func (e *InstructionCallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SetupError captures a directory or link instruction that could not be performed.
type SetupError struct {
	Factor string
	Kind   string
	Path   string
	Err    error
}

// NewSetupError constructs a SetupError.
func NewSetupError(factor, kind, path string, err error) error {
	return &SetupError{Factor: factor, Kind: kind, Path: path, Err: err}
}

func (e *SetupError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s failed on factor %s: %v", e.Kind, e.Path, e.Factor, e.Err)
}

// Unwrap exposes the root error.
func (e *SetupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MissingMechanismError indicates that no mechanism is registered for a factor's domain.
// It is reported as a warning and never counted as a build failure.
type MissingMechanismError struct {
	Factor string
	Domain string
}

// NewMissingMechanismError constructs a MissingMechanismError.
func NewMissingMechanismError(factor, domain string) error {
	return &MissingMechanismError{Factor: factor, Domain: domain}
}

func (e *MissingMechanismError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("no mechanism set for %q factors (factor %s)", e.Domain, e.Factor)
}

// CycleError lists the members of a dependency cycle, first member repeated last.
type CycleError struct {
	Scope string
	Cycle []string
}

// NewCycleError constructs a CycleError.
func NewCycleError(scope string, cycle []string) error {
	return &CycleError{Scope: scope, Cycle: append([]string(nil), cycle...)}
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("%s: dependency cycle detected", e.Scope)
	}
	return fmt.Sprintf("%s: dependency cycle detected: %s", e.Scope, strings.Join(e.Cycle, " -> "))
}

// AdapterError reports a problem resolving or running a registered adapter.
type AdapterError struct {
	Interface string
	Err       error
}

// NewAdapterError constructs an AdapterError.
func NewAdapterError(iface string, err error) error {
	return &AdapterError{Interface: iface, Err: err}
}

func (e *AdapterError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("adapter %s: %v", e.Interface, e.Err)
}

// Unwrap exposes the root error.
func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
