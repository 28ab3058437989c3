// Package schema declares metadata extraction schemas: named fields mapped to
// XPath expressions and a typed extraction kind. A schema is compiled once at
// startup; per-record evaluation is purely functional over a parsed document.
package schema

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Kind is the extraction kind of a field. The set is closed; anything else
// fails schema compilation.
type Kind int

const (
	// ScalarText extracts a single string, empty if the path has no match.
	ScalarText Kind = iota
	// TextList extracts an ordered, possibly empty list of strings.
	TextList
	// RawNode extracts matching subtrees untouched, for structured parsing
	// downstream.
	RawNode
)

func (k Kind) String() string {
	switch k {
	case ScalarText:
		return "scalar-text"
	case TextList:
		return "text-list"
	case RawNode:
		return "raw-node"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field pairs an extraction kind with an XPath expression.
type Field struct {
	Kind Kind
	Expr string
}

// Schema maps field names to extraction rules, with the namespace table the
// expressions are resolved against.
type Schema struct {
	Fields     map[string]Field
	Namespaces map[string]string
}

// SchemaError signals an invalid schema declaration. This is a configuration
// time fault, not a per-record fault.
type SchemaError struct {
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: field %q: %v", e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

type compiledField struct {
	kind Kind
	expr *xpath.Expr
}

// Compiled is a schema with all expressions compiled, ready for evaluation.
type Compiled struct {
	fields     map[string]compiledField
	namespaces map[string]string
}

// Compile validates the schema and compiles all expressions. Unknown kinds
// and malformed expressions are reported as SchemaError.
func (s Schema) Compile() (*Compiled, error) {
	c := &Compiled{
		fields:     make(map[string]compiledField, len(s.Fields)),
		namespaces: s.Namespaces,
	}
	for name, f := range s.Fields {
		switch f.Kind {
		case ScalarText, TextList, RawNode:
		default:
			return nil, &SchemaError{Field: name, Err: fmt.Errorf("unknown field kind: %s", f.Kind)}
		}
		expr, err := xpath.CompileWithNS(f.Expr, s.Namespaces)
		if err != nil {
			return nil, &SchemaError{Field: name, Err: err}
		}
		c.fields[name] = compiledField{kind: f.Kind, expr: expr}
	}
	return c, nil
}

// Namespaces returns the namespace table the schema was compiled with.
func (c *Compiled) Namespaces() map[string]string { return c.namespaces }

// Read evaluates every field expression against the document and returns the
// mapped values. No field is ever missing from the result: text fields
// default to empty values, raw nodes to an empty node list.
func (c *Compiled) Read(doc *xmlquery.Node) Mapped {
	m := make(Mapped, len(c.fields))
	for name, f := range c.fields {
		nodes := xmlquery.QuerySelectorAll(doc, f.expr)
		v := Value{Kind: f.kind}
		switch f.kind {
		case ScalarText:
			var s string
			if len(nodes) > 0 {
				s = nodes[0].InnerText()
			}
			v.Values = []string{s}
		case TextList:
			for _, n := range nodes {
				v.Values = append(v.Values, n.InnerText())
			}
		case RawNode:
			v.Nodes = nodes
		}
		m[name] = v
	}
	return m
}

// Value holds one extracted field.
type Value struct {
	Kind   Kind
	Values []string
	Nodes  []*xmlquery.Node
}

// Empty reports whether the value carries neither text nor nodes.
func (v Value) Empty() bool {
	for _, s := range v.Values {
		if s != "" {
			return false
		}
	}
	return len(v.Nodes) == 0
}

// Mapped is the result of evaluating a schema against one record.
type Mapped map[string]Value

// First returns the first text value of a field, or the empty string.
func (m Mapped) First(name string) string {
	if v, ok := m[name]; ok && len(v.Values) > 0 {
		return v.Values[0]
	}
	return ""
}

// List returns all text values of a field.
func (m Mapped) List(name string) []string {
	return m[name].Values
}

// Nodes returns the raw nodes of a field.
func (m Mapped) Nodes(name string) []*xmlquery.Node {
	return m[name].Nodes
}

// Has reports whether the field exists and is non-empty.
func (m Mapped) Has(name string) bool {
	v, ok := m[name]
	return ok && !v.Empty()
}

// SetScalar stores a single text value under name.
func (m Mapped) SetScalar(name, value string) {
	m[name] = Value{Kind: ScalarText, Values: []string{value}}
}

// AppendList appends values to a text-list field, skipping values already
// present.
func (m Mapped) AppendList(name string, values ...string) {
	v := m[name]
	v.Kind = TextList
	for _, s := range values {
		var seen bool
		for _, have := range v.Values {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			v.Values = append(v.Values, s)
		}
	}
	m[name] = v
}

// FindAttr returns the value of the first attribute whose local name matches,
// regardless of namespace prefix. RDF attributes like rdf:about show up under
// varying prefixes, so we only compare the tail of the qualified name.
func FindAttr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local || strings.HasSuffix(a.Name.Local, ":"+local) {
			return a.Value
		}
	}
	return ""
}
