package tool

import (
	"slices"

	"github.com/alphadose/haxmap"
)

// Source resolves tools by name. The coordinator queries it on every dispatch,
// so the set of available tools may change between calls.
type Source interface {
	Lookup(name string) (Tool, bool)
}

// Set is a fixed collection of tools keyed by name.
type Set map[string]Tool

// NewSet builds a Set from tool definitions.
func NewSet(tools ...Tool) Set {
	s := make(Set, len(tools))
	for _, t := range tools {
		s[t.Name] = t
	}
	return s
}

func (s Set) Lookup(name string) (Tool, bool) {
	t, ok := s[name]
	return t, ok
}

// SourceFunc adapts a function returning the current tool set to a Source.
// The function is invoked on every lookup.
type SourceFunc func() Set

func (f SourceFunc) Lookup(name string) (Tool, bool) {
	if f == nil {
		return Tool{}, false
	}
	return f().Lookup(name)
}

// Registry is a live, concurrency-safe collection of tools.
type Registry struct {
	values *haxmap.Map[string, Tool]
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{values: haxmap.New[string, Tool]()}
	for _, t := range tools {
		r.Add(t)
	}
	return r
}

// Add registers t, replacing any tool with the same name.
func (r *Registry) Add(t Tool) {
	r.values.Set(t.Name, t)
}

// Del removes the tool called name.
func (r *Registry) Del(name string) {
	r.values.Del(name)
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	return r.values.Get(name)
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(name string, _ Tool) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Tools returns a point-in-time copy of the registered tools.
func (r *Registry) Tools() Set {
	s := make(Set, r.values.Len())
	r.values.ForEach(func(name string, t Tool) bool {
		s[name] = t
		return true
	})
	return s
}
