package engine

import "strings"

// Context is the flat evaluation namespace: nested maps addressed by dotted
// paths such as "user.role" or "action.amount". The engine only ever reads
// a context; it is built by a Mapper from the upstream decision state.
type Context map[string]any

// Resolve descends the context by dotted path segments. The second return
// is false when any segment is missing or a non-map value is reached before
// the final segment.
func (c Context) Resolve(path string) (any, bool) {
	var current any = map[string]any(c)
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Mapper turns an arbitrary upstream decision-state object into the flat
// evaluation namespace. The engine depends only on the mapping's output
// shape, never on the upstream object's internals.
type Mapper interface {
	Map(state any) (Context, error)
}

// MapperFunc adapts a plain function to the Mapper interface.
type MapperFunc func(state any) (Context, error)

// Map calls f.
func (f MapperFunc) Map(state any) (Context, error) {
	return f(state)
}
