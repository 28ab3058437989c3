// Package catalog defines the contract to the destination catalog. The
// harvester core never talks to catalog storage directly; it only creates or
// updates packages, attaches resources and tags, and manages group
// memberships through this interface.
package catalog

import "context"

// Resource describes one downloadable file attached to a package. Resources
// are never deleted, only marked superseded when a re-import replaces them.
type Resource struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Size   string `json:"size,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Extra  string `json:"extra,omitempty"`
}

// Package is the normalized record handed to the catalog. The Name is a pure
// function of the source identifier; the ID is assigned on creation only.
type Package struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Title           string            `json:"title"`
	Notes           string            `json:"notes,omitempty"`
	Language        string            `json:"language,omitempty"`
	LicenseID       string            `json:"license_id,omitempty"`
	MaintainerEmail string            `json:"maintainer_email,omitempty"`
	Version         string            `json:"version,omitempty"`
	URL             string            `json:"url,omitempty"`
	Extras          map[string]string `json:"extras,omitempty"`
}

// Catalog is the surface the normalizer and the set importer rely on.
// Implementations must serialize operations touching the same package name.
type Catalog interface {
	// Lookup returns the package with the given name, or nil if absent.
	Lookup(ctx context.Context, name string) (*Package, error)
	// Upsert creates the package or updates it in place. On creation the
	// ID of the passed package is used; on update the stored ID wins.
	Upsert(ctx context.Context, pkg *Package) error
	// SupersedeResources marks all resources of a package as superseded.
	SupersedeResources(ctx context.Context, name string) error
	// AttachResource attaches a resource to a package.
	AttachResource(ctx context.Context, name string, res Resource) error
	// AttachTag attaches a tag, deduplicating by tag name.
	AttachTag(ctx context.Context, name, tag string) error
	// AddToGroup adds the package to a group, creating the group on first
	// use. Adding twice is a no-op.
	AddToGroup(ctx context.Context, name, group string) error
}
