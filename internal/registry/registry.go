// Package registry holds the collections known to the service. Each entry
// binds a declared schema to an interchange engine backed by the document
// store.
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/clubops/querycsv/internal/engine"
	"github.com/clubops/querycsv/internal/schema"
	"github.com/clubops/querycsv/internal/store"
)

// Entry is one registered collection.
type Entry struct {
	Schema *schema.Schema
	Engine *engine.Engine
	Lister engine.RecordLister
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register builds an engine for the schema over the document store and adds
// it under the schema name.
func (r *Registry) Register(s *schema.Schema, docs store.Document) error {
	cs := store.NewCollectionStore(docs, s.Name, uniqueFieldNames(s))
	eng, err := engine.New(s, cs)
	if err != nil {
		return fmt.Errorf("registering collection %s: %w", s.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[s.Name]; ok {
		return fmt.Errorf("collection %s already registered", s.Name)
	}
	r.entries[s.Name] = &Entry{Schema: s, Engine: eng, Lister: cs}
	return nil
}

// Get returns the entry for a collection name.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return entry, nil
}

// Names returns the registered collection names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads collection schemas from a YAML file and registers each of
// them over the document store.
func Load(path string, docs store.Document) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collections file: %w", err)
	}

	var schemas []schema.Schema
	if err := yaml.Unmarshal(content, &schemas); err != nil {
		return nil, fmt.Errorf("parsing collections file: %w", err)
	}

	r := New()
	for i := range schemas {
		if err := r.Register(&schemas[i], docs); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func uniqueFieldNames(s *schema.Schema) []string {
	var names []string
	for _, f := range s.Fields {
		if f.Unique && !f.Nested() {
			names = append(names, f.Name)
		}
	}
	return names
}
