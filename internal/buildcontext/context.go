// Package buildcontext loads the layered mechanism descriptors of a build
// context and selects the mechanism used for each factor domain.
package buildcontext

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// DefaultIntention is used when neither the descriptors nor the caller name one.
const DefaultIntention = "debug"

// VoidLanguage is the language of sources with an unknown extension.
const VoidLanguage = "void"

// Selection is the result of selecting a domain.
type Selection struct {
	Variants  map[string]string
	Mechanism *mechanism.Mechanism
}

// Context maps factor domains to mechanisms. It is read-only once loaded.
type Context struct {
	root       string
	name       string
	intention  string
	libraryDir string
	includeDir string

	languages   map[string]string
	descriptors map[string]mechanism.Descriptor
	symbols     map[string]factor.SymbolTree

	mu       sync.Mutex
	selected map[string]Selection
}

func newContext(root string) *Context {
	return &Context{
		root:        root,
		languages:   make(map[string]string),
		descriptors: make(map[string]mechanism.Descriptor),
		symbols:     make(map[string]factor.SymbolTree),
		selected:    make(map[string]Selection),
	}
}

// New builds a context from in-memory descriptors.
func New(name, intention string, languages map[string]string, descriptors map[string]mechanism.Descriptor) (*Context, error) {
	c := newContext("")
	c.apply(document{
		Context:    contextSection{Name: name, Intention: intention},
		Syntax:     syntaxSection{TargetFileExtensions: languages},
		Mechanisms: descriptors,
	})
	if c.intention == "" {
		c.intention = DefaultIntention
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) apply(doc document) {
	if doc.Context.Name != "" {
		c.name = doc.Context.Name
	}
	if doc.Context.Intention != "" {
		c.intention = doc.Context.Intention
	}
	for language, exts := range doc.Syntax.TargetFileExtensions {
		for _, ext := range strings.Fields(exts) {
			c.languages[strings.TrimPrefix(ext, ".")] = language
		}
	}
	for domain, d := range doc.Mechanisms {
		c.descriptors[domain] = mechanism.Overlay(c.descriptors[domain], d)
	}
}

func (c *Context) validate() error {
	for _, domain := range c.Domains() {
		d := c.descriptors[domain]
		if err := mechanism.Validate(domain, d); err != nil {
			return err
		}

		chain := []string{domain}
		seen := map[string]struct{}{domain: {}}
		for d.Inherit != "" {
			next := d.Inherit
			chain = append(chain, next)
			if _, loop := seen[next]; loop {
				return constructerrors.NewCycleError("mechanisms", chain)
			}
			base, ok := c.descriptors[next]
			if !ok {
				return constructerrors.NewValidationError(
					fmt.Sprintf("mechanisms.%s.inherit", chain[len(chain)-2]),
					fmt.Sprintf("unknown mechanism %q", next),
					nil,
				)
			}
			seen[next] = struct{}{}
			d = base
		}
	}
	return nil
}

// Select returns the variants and fully inherited mechanism of a domain.
// The second result is false when no mechanism is registered for it.
// Results are cached; callers receive their own copy of the variants.
func (c *Context) Select(domain string) (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel, ok := c.selectLocked(domain)
	if !ok {
		return Selection{}, false
	}
	variants := make(map[string]string, len(sel.Variants))
	for k, v := range sel.Variants {
		variants[k] = v
	}
	return Selection{Variants: variants, Mechanism: sel.Mechanism}, true
}

func (c *Context) selectLocked(domain string) (Selection, bool) {
	if sel, ok := c.selected[domain]; ok {
		return sel, true
	}

	d, ok := c.descriptors[domain]
	if !ok {
		return Selection{}, false
	}

	variants := map[string]string{"intention": c.intention}
	path := []string{domain}
	merged := d
	if d.Inherit != "" {
		base, ok := c.selectLocked(d.Inherit)
		if !ok {
			return Selection{}, false
		}
		merged = mechanism.Overlay(base.Mechanism.Descriptor, d)
		for k, v := range base.Variants {
			variants[k] = v
		}
		path = append(path, base.Mechanism.Path...)
	}
	for k, v := range d.Variants {
		variants[k] = v
	}
	merged.Inherit = ""

	sel := Selection{Variants: variants, Mechanism: mechanism.New(domain, path, merged)}
	c.selected[domain] = sel
	return sel, true
}

// Language returns the language of a file extension.
func (c *Context) Language(extension string) string {
	if lang, ok := c.languages[strings.TrimPrefix(extension, ".")]; ok {
		return lang
	}
	return VoidLanguage
}

// Name identifies the target of the context.
func (c *Context) Name() string { return c.name }

// Intention is the build purpose, e.g. debug or optimal.
func (c *Context) Intention() string { return c.intention }

// Root is the context directory, empty for in-memory contexts.
func (c *Context) Root() string { return c.root }

// LibraryDir is the context's lib directory when present.
func (c *Context) LibraryDir() string { return c.libraryDir }

// IncludeDir is the context's include directory when present.
func (c *Context) IncludeDir() string { return c.includeDir }

// Domains lists the domains with a registered mechanism.
func (c *Context) Domains() []string {
	out := make([]string, 0, len(c.descriptors))
	for domain := range c.descriptors {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Symbols returns the symbol names defined by the context.
func (c *Context) Symbols() []string {
	out := make([]string, 0, len(c.symbols))
	for name := range c.symbols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefineSymbols binds every context symbol in the project's symbol table.
func (c *Context) DefineSymbols(p *factor.Project) {
	for _, name := range c.Symbols() {
		p.DefineSymbol(name, c.symbols[name])
	}
}
