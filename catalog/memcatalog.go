package catalog

import (
	"context"
	"sync"
)

// ResourceState values used by implementations that track resource history.
const (
	ResourceActive     = "active"
	ResourceSuperseded = "superseded"
)

// StoredResource is a resource plus its lifecycle state.
type StoredResource struct {
	Resource
	State string
}

type memEntry struct {
	pkg       Package
	resources []StoredResource
	tags      []string
	groups    []string
}

// MemCatalog is an in-memory catalog, safe for concurrent use. It backs
// tests and dry runs; production harvests use the gorm store.
type MemCatalog struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// NewMemCatalog returns an empty in-memory catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{entries: make(map[string]*memEntry)}
}

func (m *MemCatalog) Lookup(_ context.Context, name string) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, nil
	}
	pkg := e.pkg
	return &pkg, nil
}

func (m *MemCatalog) Upsert(_ context.Context, pkg *Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pkg.Name]
	if !ok {
		cp := *pkg
		m.entries[pkg.Name] = &memEntry{pkg: cp}
		return nil
	}
	id := e.pkg.ID // assigned on creation only
	e.pkg = *pkg
	e.pkg.ID = id
	return nil
}

func (m *MemCatalog) SupersedeResources(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		for i := range e.resources {
			e.resources[i].State = ResourceSuperseded
		}
	}
	return nil
}

func (m *MemCatalog) AttachResource(_ context.Context, name string, res Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		e.resources = append(e.resources, StoredResource{Resource: res, State: ResourceActive})
	}
	return nil
}

func (m *MemCatalog) AttachTag(_ context.Context, name, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil
	}
	for _, have := range e.tags {
		if have == tag {
			return nil
		}
	}
	e.tags = append(e.tags, tag)
	return nil
}

func (m *MemCatalog) AddToGroup(_ context.Context, name, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil
	}
	for _, have := range e.groups {
		if have == group {
			return nil
		}
	}
	e.groups = append(e.groups, group)
	return nil
}

// Resources returns all resources attached to a package, in order.
func (m *MemCatalog) Resources(name string) []StoredResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		return append([]StoredResource(nil), e.resources...)
	}
	return nil
}

// Tags returns the tags of a package.
func (m *MemCatalog) Tags(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		return append([]string(nil), e.tags...)
	}
	return nil
}

// Groups returns the groups of a package.
func (m *MemCatalog) Groups(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		return append([]string(nil), e.groups...)
	}
	return nil
}

// Len returns the number of packages.
func (m *MemCatalog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Names returns all package names.
func (m *MemCatalog) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}
