// Package collect turns source files into structured inventories of declared
// and used code artifacts. One Collector implementation exists per source
// language, unified behind a capability interface and dispatched by file
// extension through an explicit registry; there is no shared traversal
// hierarchy, since the grammars diverge too much for one to help.
package collect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// errSyntax marks a tree-sitter parse that produced error nodes.
var errSyntax = errors.New("syntax error")

// Mode selects which facts a collection pass records. Declaration and usage
// facts can be gathered in the same tree traversal when both are requested.
type Mode int

const (
	// ModeDeclaration records what a file defines: functions, classes,
	// methods, attributes, bases, parameter lists.
	ModeDeclaration Mode = 1 << iota
	// ModeUsage records what a file exercises: calls, instantiations,
	// method calls on tracked receivers, call-site argument counts.
	ModeUsage
)

// ModeBoth gathers declaration and usage facts in a single pass.
const ModeBoth = ModeDeclaration | ModeUsage

// Has reports whether mode includes the given bit.
func (m Mode) Has(bit Mode) bool { return m&bit != 0 }

// Param is one declared parameter of a function or method. The implicit
// receiver parameter of instance methods (self, this) is never recorded.
type Param struct {
	Name       string
	Type       string
	HasDefault bool
}

// Collection is the structured inventory produced by one collection pass
// over one source file.
type Collection struct {
	// Declaration facts.
	Classes    map[string]bool
	Functions  map[string][]Param            // top-level function name → params
	Methods    map[string]map[string][]Param // class → method name → params
	ClassBases map[string][]string
	Attributes map[string][]string // class → attribute names; "" is file scope

	// VarToClass is the best-effort local binding map built from simple
	// x = ClassName(...) assignments, used to attribute method calls.
	VarToClass map[string]string

	// Usage facts (populated in ModeUsage).
	UsedClasses   map[string]bool
	UsedFunctions map[string]bool
	UsedMethods   map[string][]string // resolved class (or raw receiver) → methods
	UsedArguments map[string][]int    // callee key → argument count per call site
}

// NewCollection returns an empty, fully initialized collection.
func NewCollection() *Collection {
	return &Collection{
		Classes:       make(map[string]bool),
		Functions:     make(map[string][]Param),
		Methods:       make(map[string]map[string][]Param),
		ClassBases:    make(map[string][]string),
		Attributes:    make(map[string][]string),
		VarToClass:    make(map[string]string),
		UsedClasses:   make(map[string]bool),
		UsedFunctions: make(map[string]bool),
		UsedMethods:   make(map[string][]string),
		UsedArguments: make(map[string][]int),
	}
}

// AddMethod records a method under its owning class.
func (c *Collection) AddMethod(class, name string, params []Param) {
	if c.Methods[class] == nil {
		c.Methods[class] = make(map[string][]Param)
	}
	c.Methods[class][name] = params
}

// AddAttribute records an attribute under its owning class ("" for file
// scope), ignoring duplicates.
func (c *Collection) AddAttribute(class, name string) {
	for _, a := range c.Attributes[class] {
		if a == name {
			return
		}
	}
	c.Attributes[class] = append(c.Attributes[class], name)
}

// AddUsedMethod records a method call attributed to a class or raw receiver.
func (c *Collection) AddUsedMethod(receiver, method string) {
	for _, m := range c.UsedMethods[receiver] {
		if m == method {
			return
		}
	}
	c.UsedMethods[receiver] = append(c.UsedMethods[receiver], method)
}

// AddCallSite records the argument count observed at one call site.
func (c *Collection) AddCallSite(callee string, argc int) {
	c.UsedArguments[callee] = append(c.UsedArguments[callee], argc)
}

// HasMethod reports whether class.name is declared.
func (c *Collection) HasMethod(class, name string) bool {
	m, ok := c.Methods[class]
	if !ok {
		return false
	}
	_, ok = m[name]
	return ok
}

// HasAttribute reports whether an attribute is declared under class ("" for
// file scope).
func (c *Collection) HasAttribute(class, name string) bool {
	for _, a := range c.Attributes[class] {
		if a == name {
			return true
		}
	}
	return false
}

// UsedMethodOn reports whether a method call was attributed to class.
func (c *Collection) UsedMethodOn(class, method string) bool {
	for _, m := range c.UsedMethods[class] {
		if m == method {
			return true
		}
	}
	return false
}

// Merge folds other into c. Used by embedded-language composition where an
// outer document delegates regions to an inner collector.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	for k := range other.Classes {
		c.Classes[k] = true
	}
	for k, v := range other.Functions {
		c.Functions[k] = v
	}
	for class, methods := range other.Methods {
		for name, params := range methods {
			c.AddMethod(class, name, params)
		}
	}
	for k, v := range other.ClassBases {
		c.ClassBases[k] = v
	}
	for class, attrs := range other.Attributes {
		for _, a := range attrs {
			c.AddAttribute(class, a)
		}
	}
	for k, v := range other.VarToClass {
		c.VarToClass[k] = v
	}
	for k := range other.UsedClasses {
		c.UsedClasses[k] = true
	}
	for k := range other.UsedFunctions {
		c.UsedFunctions[k] = true
	}
	for recv, methods := range other.UsedMethods {
		for _, m := range methods {
			c.AddUsedMethod(recv, m)
		}
	}
	for callee, counts := range other.UsedArguments {
		c.UsedArguments[callee] = append(c.UsedArguments[callee], counts...)
	}
}

// Collector extracts artifacts from source files of one language.
type Collector interface {
	// Language names the collector's grammar (for reporting).
	Language() string
	// Supports reports whether the collector handles the file's extension.
	Supports(path string) bool
	// Collect parses the file and records facts per mode. A syntactically
	// invalid file yields a *ParseError.
	Collect(ctx context.Context, path string, mode Mode) (*Collection, error)
}

// ParseError reports a source file that could not be parsed. It is scoped
// to one file; batch operations skip the file and continue.
type ParseError struct {
	Path     string
	Language string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Language, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Registry is an ordered list of collectors with extension dispatch. First
// registration wins on extension conflict.
type Registry struct {
	collectors []Collector
}

// NewRegistry creates a registry from the given collectors.
func NewRegistry(collectors ...Collector) *Registry {
	return &Registry{collectors: collectors}
}

// DefaultRegistry returns a registry with every built-in language collector.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPythonCollector(),
		NewGoCollector(),
		NewTypeScriptCollector(),
		NewHTMLCollector(),
	)
}

// ForFile returns the first collector supporting the file's extension.
func (r *Registry) ForFile(path string) (Collector, bool) {
	for _, c := range r.collectors {
		if c.Supports(path) {
			return c, true
		}
	}
	return nil, false
}

// Supports reports whether any collector handles the file.
func (r *Registry) Supports(path string) bool {
	_, ok := r.ForFile(path)
	return ok
}

// Languages returns the registered language names in dispatch order.
func (r *Registry) Languages() []string {
	names := make([]string, 0, len(r.collectors))
	for _, c := range r.collectors {
		names = append(names, c.Language())
	}
	return names
}

// Collect dispatches to the collector for the file's extension.
func (r *Registry) Collect(ctx context.Context, path string, mode Mode) (*Collection, error) {
	c, ok := r.ForFile(path)
	if !ok {
		return nil, fmt.Errorf("no collector for %s", filepath.Ext(path))
	}
	return c.Collect(ctx, path, mode)
}

// hasExt reports whether path carries one of the given extensions.
func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
