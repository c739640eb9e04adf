package mechanism

import (
	"fmt"
	"sort"
	"sync"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

type adaptionKey struct {
	phase Phase
	key   string
}

// Mechanism is a fully inherited descriptor selected for a domain. Adapter
// resolutions are cached; a Mechanism is safe for concurrent use.
type Mechanism struct {
	Domain string
	// Path lists the domain followed by the domains it inherited from.
	Path       []string
	Descriptor Descriptor

	mu    sync.Mutex
	cache map[adaptionKey]Adapter
}

// New wraps a flattened descriptor.
func New(domain string, path []string, descriptor Descriptor) *Mechanism {
	return &Mechanism{
		Domain:     domain,
		Path:       append([]string(nil), path...),
		Descriptor: descriptor,
		cache:      make(map[adaptionKey]Adapter),
	}
}

// Integrates reports whether the mechanism reduces transformed sources into
// an integral. Mechanisms that do not integrate produce the integral directly.
func (m *Mechanism) Integrates() bool {
	return len(m.Descriptor.Integrations) > 0
}

// Adaption resolves the adapter used for key in phase. Keys without an entry
// fall back to DefaultKey. The adapter's inherit chain within the phase is
// flattened with the inheriting adapter winning, and the result is cached.
func (m *Mechanism) Adaption(phase Phase, key string) (Adapter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ck := adaptionKey{phase: phase, key: key}
	if cached, ok := m.cache[ck]; ok {
		return cached, true
	}

	set := m.Descriptor.Adapters(phase)
	name := key
	if _, ok := set[name]; !ok {
		name = DefaultKey
	}
	current, ok := set[name]
	if !ok {
		return Adapter{}, false
	}

	layers := []Adapter{current}
	seen := map[string]struct{}{name: {}}
	for current.Inherit != "" {
		if _, loop := seen[current.Inherit]; loop {
			break
		}
		seen[current.Inherit] = struct{}{}
		base, exists := set[current.Inherit]
		if !exists {
			break
		}
		layers = append(layers, base)
		current = base
	}

	var merged Adapter
	for i := len(layers) - 1; i >= 0; i-- {
		merged = OverlayAdapter(merged, layers[i])
	}
	merged.Inherit = ""

	m.cache[ck] = merged
	return merged, true
}

// Format returns the output encoding for a factor type.
func (m *Mechanism) Format(factorType string) string {
	if f, ok := m.Descriptor.Formats[factorType]; ok && f != "" {
		return f
	}
	return m.Descriptor.Formats[DefaultKey]
}

// Formats returns the distinct encodings a factor must be built in. Partial
// factors are built once per format their dependents need; every other type
// is built in exactly one format.
func (m *Mechanism) Formats(factorType string, dependentTypes []string) []string {
	if factorType != "partial" {
		return []string{m.Format(factorType)}
	}

	fallback := m.Format("partial")
	if len(dependentTypes) == 0 {
		return []string{fallback}
	}

	seen := make(map[string]struct{}, len(dependentTypes))
	var out []string
	for _, t := range dependentTypes {
		f, ok := m.Descriptor.Formats[t]
		if !ok || f == "" {
			f = fallback
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Suffix returns the file extension of the integral for a factor type.
func (m *Mechanism) Suffix(factorType string) string {
	tfe := m.Descriptor.TargetExtensions
	if s := tfe[factorType]; s != "" {
		return s
	}
	if s := tfe[DefaultKey]; s != "" {
		return s
	}
	return ".i"
}

// Validate checks descriptor fields and that adapter inheritance stays
// inside its phase and is acyclic.
func Validate(domain string, d Descriptor) error {
	if err := validatorInstance().Struct(d); err != nil {
		return constructerrors.NewValidationError("mechanisms."+domain, err.Error(), err)
	}

	for _, phase := range []Phase{PhaseTransformations, PhaseIntegrations} {
		set := d.Adapters(phase)
		for _, name := range sortedKeys(set) {
			if err := checkAdapterChain(domain, phase, name, set); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkAdapterChain(domain string, phase Phase, start string, set map[string]Adapter) error {
	chain := []string{start}
	seen := map[string]struct{}{start: {}}
	current := set[start]
	for current.Inherit != "" {
		next := current.Inherit
		chain = append(chain, next)
		if _, loop := seen[next]; loop {
			return constructerrors.NewCycleError(fmt.Sprintf("mechanisms.%s.%s", domain, phase), chain)
		}
		base, ok := set[next]
		if !ok {
			return constructerrors.NewValidationError(
				fmt.Sprintf("mechanisms.%s.%s.%s.inherit", domain, phase, start),
				fmt.Sprintf("unknown adapter %q", next),
				nil,
			)
		}
		seen[next] = struct{}{}
		current = base
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
