// Package mechanism describes how the sources of one factor domain are
// transformed and integrated into an artifact.
package mechanism

// DefaultKey selects the fallback entry of formats, adapter sets and
// target extensions when no entry matches the requested key.
const DefaultKey = "default"

// Phase names an adapter set of a descriptor.
type Phase string

const (
	PhaseTransformations Phase = "transformations"
	PhaseIntegrations    Phase = "integrations"
)

// Adapter methods.
const (
	MethodInternal    = "internal"
	MethodInterpreter = "interpreter"
	// MethodLink links the single input to the output instead of running a tool.
	MethodLink = "link"
)

// RedirectIO feeds the first input to stdin and writes stdout to the output.
// Any other non-empty redirect only writes stdout to the output.
const RedirectIO = "io"

// Descriptor is the serialized form of a mechanism.
type Descriptor struct {
	Inherit          string             `yaml:"inherit,omitempty" toml:"inherit,omitempty"`
	Variants         map[string]string  `yaml:"variants,omitempty" toml:"variants,omitempty"`
	Formats          map[string]string  `yaml:"formats,omitempty" toml:"formats,omitempty"`
	Transformations  map[string]Adapter `yaml:"transformations,omitempty" toml:"transformations,omitempty" validate:"omitempty,dive"`
	Integrations     map[string]Adapter `yaml:"integrations,omitempty" toml:"integrations,omitempty" validate:"omitempty,dive"`
	IgnoreExtensions []string           `yaml:"ignore-extensions,omitempty" toml:"ignore-extensions,omitempty"`
	TargetExtensions map[string]string  `yaml:"target-file-extensions,omitempty" toml:"target-file-extensions,omitempty"`
}

// Adapter binds a registered command constructor to the command it runs.
type Adapter struct {
	// Interface is the registry key of the command constructor.
	Interface   string         `yaml:"interface,omitempty" toml:"interface,omitempty"`
	Type        string         `yaml:"type,omitempty" toml:"type,omitempty"`
	Method      string         `yaml:"method,omitempty" toml:"method,omitempty" validate:"omitempty,oneof=internal interpreter link"`
	Command     string         `yaml:"command,omitempty" toml:"command,omitempty"`
	Interpreter string         `yaml:"interpreter,omitempty" toml:"interpreter,omitempty" validate:"required_if=Method interpreter"`
	Redirect    string         `yaml:"redirect,omitempty" toml:"redirect,omitempty"`
	Root        string         `yaml:"root,omitempty" toml:"root,omitempty"`
	Options     []string       `yaml:"options,omitempty" toml:"options,omitempty"`
	Inherit     string         `yaml:"inherit,omitempty" toml:"inherit,omitempty"`
	Defaults    map[string]any `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
}

// Adapters returns the adapter set of the phase.
func (d *Descriptor) Adapters(phase Phase) map[string]Adapter {
	switch phase {
	case PhaseTransformations:
		return d.Transformations
	case PhaseIntegrations:
		return d.Integrations
	default:
		return nil
	}
}

// Ignores reports whether sources with the extension are skipped.
func (d *Descriptor) Ignores(extension string) bool {
	for _, ext := range d.IgnoreExtensions {
		if ext == extension {
			return true
		}
	}
	return false
}
