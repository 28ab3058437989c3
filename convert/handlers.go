package convert

import (
	"fmt"
	"log"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/schema"
)

// handleContributor extracts embedded foaf:Project entries into numbered
// project extras. A project is identified by its rdf:about reference, or by
// a foaf:name child when no reference is present. Without any structured
// entries, the raw node text is kept as a single contributor extra.
func (n *Normalizer) handleContributor(nodes []*xmlquery.Node) map[string]string {
	d := make(map[string]string)
	projIdx := 0
	for _, node := range nodes {
		for _, pro := range xmlquery.QuerySelectorAll(node, n.paths.project) {
			name := schema.FindAttr(pro, "about")
			if name == "" {
				ns := xmlquery.QuerySelectorAll(pro, n.paths.projectName)
				if len(ns) == 0 {
					continue
				}
				name = ns[0].InnerText()
			}
			d[fmt.Sprintf("project_%d", projIdx)] = name
			projIdx++
		}
	}
	if len(nodes) > 0 && len(d) == 0 {
		d["contributor"] = nodes[0].InnerText()
	}
	return d
}

// handlePublisher extracts embedded foaf:person entries: contact reference,
// phone and email. Only the first person's email becomes the maintainer
// email; the rest are dropped for now since the package has a single
// maintainer field.
func (n *Normalizer) handlePublisher(nodes []*xmlquery.Node) (map[string]string, string) {
	d := make(map[string]string)
	var email string
	personIdx := 0
	for _, node := range nodes {
		for _, p := range xmlquery.QuerySelectorAll(node, n.paths.person) {
			contactURL := schema.FindAttr(p, "about")
			var mbox, phone string
			if ns := xmlquery.QuerySelectorAll(p, n.paths.mbox); len(ns) > 0 {
				mbox = schema.FindAttr(ns[0], "resource")
			}
			if ns := xmlquery.QuerySelectorAll(p, n.paths.phone); len(ns) > 0 {
				phone = schema.FindAttr(ns[0], "resource")
			}
			if contactURL != "" {
				d[fmt.Sprintf("contactURL_%d", personIdx)] = contactURL
			}
			if len(phone) > 5 { // filter out "-" and similar placeholders
				d[fmt.Sprintf("phone_%d", personIdx)] = phone
			}
			if mbox != "" && personIdx == 0 {
				email = mbox
			}
			personIdx++
		}
	}
	if len(nodes) > 0 && len(d) == 0 && email == "" {
		d["publisher"] = nodes[0].InnerText()
	}
	return d, email
}

// Rights categories appearing in RightsDeclaration elements.
const (
	categoryLicensed     = "LICENSED"
	categoryPublicDomain = "PUBLIC DOMAIN"
	categoryContractual  = "CONTRACTUAL"
	categoryOther        = "OTHER"
	categoryCopyrighted  = "COPYRIGHTED"
)

// handleRights classifies the rights statement into a license id or a
// license extra. A structured RightsDeclaration supplies the category;
// unstructured text is treated as LICENSED and matched against the license
// registry.
func (n *Normalizer) handleRights(nodes []*xmlquery.Node) (licenseID string, d map[string]string) {
	d = make(map[string]string)
	if len(nodes) == 0 {
		return "", d
	}
	var category, text string
	decls := xmlquery.QuerySelectorAll(nodes[0], n.paths.rightsDecl)
	if len(decls) > 0 {
		if len(decls) > 1 {
			// Repeatable in the wild, but the package has a single
			// license field; only the first declaration is honored.
			log.Printf("warning: multiple RightsDeclarations in one record")
		}
		category = decls[0].SelectAttr("RIGHTSCATEGORY")
		text = decls[0].InnerText()
	} else {
		// Probably just old-fashioned text.
		text = nodes[0].InnerText()
		category = categoryLicensed // give recognizing the license a try
	}
	switch {
	case category == categoryLicensed && text != "":
		if id, ok := n.Licenses.Match(text); ok {
			return id, d
		}
		// Something unknown, keep the text or link around.
		if hasURLPrefix(text) {
			d["licenseURL"] = text
		} else {
			d["licenseText"] = text
		}
	case category == categoryPublicDomain:
		return catalog.LicenseOtherPublicDomain, d
	case category == categoryContractual, category == categoryOther:
		return catalog.LicenseOtherClosed, d
	case category == categoryCopyrighted:
		return catalog.LicenseNotSpecified, d
	}
	return "", d
}

// handleFormat extracts fp:File descriptions into resources. Entries
// without a reference URL are skipped. The checksum algorithm reference has
// no typed field on resources and is stored as a free-form extra.
func (n *Normalizer) handleFormat(nodes []*xmlquery.Node) []catalog.Resource {
	var out []catalog.Resource
	for _, node := range nodes {
		for _, f := range xmlquery.QuerySelectorAll(node, n.paths.file) {
			link := schema.FindAttr(f, "about")
			if link == "" {
				continue
			}
			res := catalog.Resource{URL: link, Format: InferFormat(link)}
			// Should be only one.
			for _, sz := range xmlquery.QuerySelectorAll(f, n.paths.fileSize) {
				res.Size = sz.InnerText()
			}
			for _, c := range xmlquery.QuerySelectorAll(f, n.paths.checksum) {
				for _, ck := range xmlquery.QuerySelectorAll(c, n.paths.checksumInner) {
					for _, a := range xmlquery.QuerySelectorAll(ck, n.paths.algorithm) {
						res.Extra = schema.FindAttr(a, "about")
					}
					for _, v := range xmlquery.QuerySelectorAll(ck, n.paths.checksumValue) {
						res.Hash = v.InnerText()
					}
				}
			}
			out = append(out, res)
		}
	}
	return out
}

func hasURLPrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
