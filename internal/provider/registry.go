package provider

import "fmt"

// Constructor builds a Provider handle for the given model identifier.
// Constructors must be side-effect-free and cheap; any real connection
// setup happens lazily inside EncodeOne/EncodeBatch.
type Constructor func(modelID string) (Provider, error)

// Registry resolves a stable provider identifier (e.g. "local/minilm" or
// "hosted/small") to a constructed Provider handle. One Registry is built
// at process startup and consulted once per run (INIT), per the engine's
// "one provider per run, shared by all workers" contract.
type Registry struct {
	families map[string]Constructor
}

// NewRegistry returns an empty registry; callers register families with
// Register before calling Resolve.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Constructor)}
}

// Register associates a family prefix (e.g. "local", "hosted") with a
// constructor. Resolve splits "<family>/<model>" on the first slash.
func (r *Registry) Register(family string, ctor Constructor) {
	r.families[family] = ctor
}

// Resolve builds the Provider for id, formatted "<family>/<model>".
func (r *Registry) Resolve(id string) (Provider, error) {
	family, model, ok := splitID(id)
	if !ok {
		return nil, fmt.Errorf("provider id %q: expected \"<family>/<model>\"", id)
	}
	ctor, ok := r.families[family]
	if !ok {
		return nil, fmt.Errorf("provider id %q: unknown family %q", id, family)
	}
	return ctor(model)
}

// Families lists registered family prefixes, sorted by registration order
// is not guaranteed; callers needing a stable listing should sort.
func (r *Registry) Families() []string {
	out := make([]string, 0, len(r.families))
	for f := range r.families {
		out = append(out, f)
	}
	return out
}

func splitID(id string) (family, model string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return id[:i], id[i+1:], true
		}
	}
	return "", "", false
}
