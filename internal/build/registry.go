package build

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// Request is passed to a command constructor.
type Request struct {
	Build   *Build
	Adapter mechanism.Adapter
	// OutputType is the format of the output; InputType the language of the inputs.
	OutputType string
	Output     string
	InputType  string
	Inputs     []string
	// Populated for integrations only.
	Partials        []Requirement
	Libraries       []Requirement
	Transformations map[string]mechanism.Adapter
}

// ErrDisabled is returned by constructors of adapters that produce no work.
var ErrDisabled = errors.New("adapter disabled")

// Constructor builds the argument vector of an adapter. An empty first
// element is replaced by the adapter's command.
type Constructor func(req Request) ([]string, error)

// CallRequest is passed to an internal call.
type CallRequest struct {
	Argv    []string
	Sources []string
	Output  string
	Log     string
}

// CallFunc implements an adapter with the internal method.
type CallFunc func(ctx context.Context, req CallRequest) error

// Registry maps adapter interface names to command constructors and
// internal call names to functions.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	calls        map[string]CallFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		calls:        make(map[string]CallFunc),
	}
}

// Register binds a command constructor to an interface name.
func (r *Registry) Register(name string, c Constructor) error {
	if name == "" || c == nil {
		return constructerrors.NewAdapterError(name, fmt.Errorf("constructor is nil or unnamed"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return constructerrors.NewAdapterError(name, fmt.Errorf("constructor already registered"))
	}
	r.constructors[name] = c
	return nil
}

// RegisterCall binds an internal call to a name.
func (r *Registry) RegisterCall(name string, fn CallFunc) error {
	if name == "" || fn == nil {
		return constructerrors.NewAdapterError(name, fmt.Errorf("call is nil or unnamed"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calls[name]; exists {
		return constructerrors.NewAdapterError(name, fmt.Errorf("call already registered"))
	}
	r.calls[name] = fn
	return nil
}

// Constructor returns the constructor registered under name.
func (r *Registry) Constructor(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[name]
	return c, ok
}

// Call returns the internal call registered under name.
func (r *Registry) Call(name string) (CallFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.calls[name]
	return fn, ok
}

// Interfaces lists the registered constructor names.
func (r *Registry) Interfaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
