package stories

import (
	"fmt"
	"sort"
)

// Factory builds a component from record props.
type Factory func(props map[string]string) (Component, error)

// Registry maps component names used in collection files to factories.
type Registry map[string]Factory

func (r Registry) Resolve(name string, props map[string]string) (Component, error) {
	f, ok := r[name]
	if !ok || f == nil {
		return nil, fmt.Errorf("unknown component %q (known: %v)", name, r.Names())
	}
	c, err := f(props)
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", name, err)
	}
	if c == nil {
		return nil, fmt.Errorf("component %q: factory returned nil", name)
	}
	return c, nil
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
