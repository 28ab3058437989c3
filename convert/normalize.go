// Package convert maps harvested Dublin Core metadata onto normalized
// catalog packages: attributes, extras, tags, license, maintainer contact
// and resource descriptors.
package convert

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/antchfx/xpath"

	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/schema"
)

// maxTagLength caps tag names, matching the column limit of the catalog.
const maxTagLength = 100

// availableFormats are the resource formats we can infer from a URL ending.
// "data" is the catalog's marker for unknown resources.
var availableFormats = []string{
	"data", "rdf", "pdf", "api", "zip", "xls", "csv", "txt", "xml", "json", "html",
}

const defaultFormat = "html"

// fields consumed into first class attributes or handled structurally; these
// never end up in the generic extras pass.
var consumedFields = map[string]bool{
	"title":           true,
	"description":     true,
	"publisherNode":   true,
	"contributorNode": true,
	"formatNode":      true,
	"identifier":      true,
	"source":          true,
	"rightsNode":      true,
}

// DeriveName derives the catalog package name from a source identifier by
// double percent-encoding it. Percent-encoding is injective, so distinct
// identifiers never collide.
func DeriveName(identifier string) string {
	return url.QueryEscape(url.QueryEscape(identifier))
}

// InferFormat guesses a resource format from the end of a URL. Iteration
// deliberately runs the full format list and keeps replacing the result, so
// the last matching extension in list order wins.
func InferFormat(link string) string {
	format := defaultFormat
	for _, ext := range availableFormats {
		if strings.HasSuffix(link, ext) {
			format = ext
		}
	}
	return format
}

// Normalizer turns mapped metadata into catalog packages.
type Normalizer struct {
	Catalog  catalog.Catalog
	Licenses *catalog.Registry

	paths rdfPaths
}

// rdfPaths holds the compiled sub-expressions for the embedded RDF
// fragments. Compiled once; a bad expression is a configuration fault.
type rdfPaths struct {
	project       *xpath.Expr
	projectName   *xpath.Expr
	person        *xpath.Expr
	mbox          *xpath.Expr
	phone         *xpath.Expr
	rightsDecl    *xpath.Expr
	file          *xpath.Expr
	fileSize      *xpath.Expr
	checksum      *xpath.Expr
	checksumInner *xpath.Expr
	checksumValue *xpath.Expr
	algorithm     *xpath.Expr
}

// NewNormalizer compiles the structured extraction paths against the given
// namespace table. Registry defaults to the builtin license list.
func NewNormalizer(cat catalog.Catalog, reg *catalog.Registry, namespaces map[string]string) (*Normalizer, error) {
	if reg == nil {
		reg = catalog.DefaultRegistry
	}
	n := &Normalizer{Catalog: cat, Licenses: reg}
	exprs := []struct {
		dst  **xpath.Expr
		expr string
	}{
		{&n.paths.project, "./foaf:Project"},
		{&n.paths.projectName, "./foaf:name"},
		{&n.paths.person, "./foaf:person"},
		{&n.paths.mbox, "./foaf:mbox"},
		{&n.paths.phone, "./foaf:phone"},
		{&n.paths.rightsDecl, `./*[local-name() = "RightsDeclaration"]`},
		{&n.paths.file, "./fp:File"},
		{&n.paths.fileSize, "./fp:size"},
		{&n.paths.checksum, "./fp:checksum"},
		{&n.paths.checksumInner, "./fp:Checksum"},
		{&n.paths.checksumValue, "./fp:checksumValue"},
		{&n.paths.algorithm, "./fp:generator/wn:Algorithm"},
	}
	for _, e := range exprs {
		compiled, err := xpath.CompileWithNS(e.expr, namespaces)
		if err != nil {
			return nil, &schema.SchemaError{Field: e.expr, Err: err}
		}
		*e.dst = compiled
	}
	return n, nil
}

// Normalize maps one record onto the catalog. A nil error means the package
// was created or updated; any fault, including a panic in the mapping code,
// is returned as an error and never propagates further.
func (n *Normalizer) Normalize(ctx context.Context, identifier string, mapped schema.Mapped, pkgURL, group string) (pkg *catalog.Package, err error) {
	defer func() {
		if r := recover(); r != nil {
			pkg, err = nil, fmt.Errorf("normalize %s: panic: %v", identifier, r)
		}
	}()
	return n.normalize(ctx, identifier, mapped, pkgURL, group)
}

func (n *Normalizer) normalize(ctx context.Context, identifier string, mapped schema.Mapped, pkgURL, group string) (*catalog.Package, error) {
	// An untitled record still needs a title, fall back to the identifier.
	title := mapped.First("title")
	if title == "" {
		title = identifier
	}
	name := DeriveName(identifier)
	existing, err := n.Catalog.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	pkg := &catalog.Package{ID: identifier, Name: name, Title: title}
	if existing != nil {
		log.Printf("updating: %s", name)
		pkg.ID = existing.ID
		// Old resources are replaced by the fresh ones if still relevant,
		// so tombstone everything attached so far.
		if err := n.Catalog.SupersedeResources(ctx, name); err != nil {
			return nil, err
		}
	}
	extras := make(map[string]string)
	var tags []string
	idx := 0
	for _, field := range []string{"subject", "type"} {
		for _, tag := range mapped.List(field) {
			tag = strings.TrimSpace(tag)
			if strings.HasPrefix(tag, "http://") || strings.HasPrefix(tag, "https://") {
				// URL tags break link rendering; keep them as extras.
				extras[fmt.Sprintf("tag_source_%d", idx)] = tag
				idx++
				continue
			}
			if len(tag) > maxTagLength {
				tag = tag[:maxTagLength]
			}
			tags = append(tags, tag)
		}
	}
	for k, v := range n.handleContributor(mapped.Nodes("contributorNode")) {
		extras[k] = v
	}
	pub, email := n.handlePublisher(mapped.Nodes("publisherNode"))
	for k, v := range pub {
		extras[k] = v
	}
	pkg.MaintainerEmail = email
	licenseID, rights := n.handleRights(mapped.Nodes("rightsNode"))
	for k, v := range rights {
		extras[k] = v
	}
	pkg.LicenseID = licenseID
	if lang := mapped.List("language"); len(lang) > 0 && len(lang[0]) > 1 {
		pkg.Language = lang[0]
	}
	for key, value := range mapped {
		if consumedFields[key] || value.Empty() || len(value.Values) == 0 {
			continue
		}
		extras[key] = value.Values[0]
	}
	notes := strings.Join(mapped.List("description"), " ")
	notes = strings.ReplaceAll(notes, "\n", " ")
	notes = strings.ReplaceAll(notes, "  ", " ")
	pkg.Notes = notes
	if date, ok := extras["date"]; ok {
		pkg.Version = date
		extras["modified"] = date
		delete(extras, "date")
	}
	pkg.Extras = extras
	pkg.URL = pkgURL
	if err := n.Catalog.Upsert(ctx, pkg); err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if err := n.Catalog.AttachTag(ctx, name, tag); err != nil {
			return nil, err
		}
	}
	for _, link := range mapped.List("identifier") {
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			continue
		}
		res := catalog.Resource{URL: link, Name: pkg.Title, Format: InferFormat(link)}
		if err := n.Catalog.AttachResource(ctx, name, res); err != nil {
			return nil, err
		}
	}
	for _, res := range n.handleFormat(mapped.Nodes("formatNode")) {
		if err := n.Catalog.AttachResource(ctx, name, res); err != nil {
			return nil, err
		}
	}
	// Records join the main group even if they belong to no set.
	if group != "" {
		if err := n.Catalog.AddToGroup(ctx, name, group); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}
