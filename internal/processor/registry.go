package processor

import (
	"fmt"
	"path"
	"slices"
	"sync"
)

// Registry is an ordered list of file processors resolved by first match.
type Registry struct {
	mu         sync.RWMutex
	processors []FileProcessor
}

// NewRegistry creates a registry holding ps in order.
func NewRegistry(ps ...FileProcessor) *Registry {
	r := &Registry{}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register appends p at the lowest priority.
func (r *Registry) Register(p FileProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors = append(r.processors, p)
}

// Insert places p at index, shifting later processors down. Index is clamped.
func (r *Registry) Insert(index int, p FileProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	index = min(max(index, 0), len(r.processors))
	r.processors = slices.Insert(r.processors, index, p)
}

// InsertBefore places p ahead of the processor named name.
func (r *Registry) InsertBefore(name string, p FileProcessor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.processors {
		if existing.Name() == name {
			r.processors = slices.Insert(r.processors, i, p)
			return nil
		}
	}
	return fmt.Errorf("processor %q not registered", name)
}

// Match returns the first processor whose predicate accepts rel.
func (r *Registry) Match(rel string) (FileProcessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.processors {
		if p.Handles(rel) {
			return p, true
		}
	}
	return nil, false
}

// OutputPath routes rel through its matching processor's pure mapping.
func (r *Registry) OutputPath(rel string) (string, bool) {
	p, ok := r.Match(rel)
	if !ok {
		return "", false
	}
	return path.Clean(p.OutputPath(rel)), true
}

// Processors returns the processors in dispatch order.
func (r *Registry) Processors() []FileProcessor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.processors)
}

// Names lists processor names in dispatch order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.processors))
	for i, p := range r.processors {
		names[i] = p.Name()
	}
	return names
}

// CollectionRegistry holds collection processors in fixed registration order.
type CollectionRegistry struct {
	processors []CollectionProcessor
	owners     map[string]string
}

// NewCollectionRegistry creates an empty collection registry.
func NewCollectionRegistry() *CollectionRegistry {
	return &CollectionRegistry{owners: make(map[string]string)}
}

// Register appends p, rejecting artifact paths already claimed by another processor.
func (c *CollectionRegistry) Register(p CollectionProcessor) error {
	arts := p.Artifacts()
	for _, a := range arts {
		key := path.Clean(a)
		if owner, taken := c.owners[key]; taken {
			return fmt.Errorf("artifact %s claimed by both %s and %s", key, owner, p.Name())
		}
	}
	for _, a := range arts {
		c.owners[path.Clean(a)] = p.Name()
	}
	c.processors = append(c.processors, p)
	return nil
}

// Processors returns the processors in registration order.
func (c *CollectionRegistry) Processors() []CollectionProcessor {
	return slices.Clone(c.processors)
}

// Artifacts returns every claimed artifact path, sorted.
func (c *CollectionRegistry) Artifacts() []string {
	out := make([]string, 0, len(c.owners))
	for a := range c.owners {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}
