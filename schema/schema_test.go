package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/google/go-cmp/cmp"
)

const sampleDC = `
<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"
           xmlns:dc="http://purl.org/dc/elements/1.1/"
           xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
           xmlns:foaf="http://xmlns.com/foaf/0.1/">
  <dc:title>Helsinki Region Travel Time Matrix</dc:title>
  <dc:creator>Accessibility Research Group</dc:creator>
  <dc:subject>accessibility</dc:subject>
  <dc:subject>travel time</dc:subject>
  <dc:description>Travel times and distances by walking.</dc:description>
  <dc:date>2015-01-30</dc:date>
  <dc:language>en</dc:language>
  <dc:identifier>http://example.org/dataset/123</dc:identifier>
  <dc:rights>
    <RightsDeclaration RIGHTSCATEGORY="LICENSED">cc-by</RightsDeclaration>
  </dc:rights>
  <dc:publisher>
    <foaf:person rdf:about="http://example.org/staff/1">
      <foaf:mbox rdf:resource="mailto:data@example.org"/>
    </foaf:person>
  </dc:publisher>
</oai_dc:dc>`

func mustParse(t *testing.T, s string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDublinCoreRead(t *testing.T) {
	c, err := DublinCore.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := c.Read(mustParse(t, sampleDC))
	if got, want := m.First("title"), "Helsinki Region Travel Time Matrix"; got != want {
		t.Errorf("title: got %q, want %q", got, want)
	}
	if got, want := m.List("subject"), []string{"accessibility", "travel time"}; !cmp.Equal(got, want) {
		t.Errorf("subject: got %v, want %v", got, want)
	}
	if got, want := m.First("date"), "2015-01-30"; got != want {
		t.Errorf("date: got %q, want %q", got, want)
	}
	if !m.Has("rightsNode") {
		t.Errorf("expected rightsNode to be present")
	}
	if got := len(m.Nodes("rightsNode")); got != 1 {
		t.Errorf("rightsNode: got %d nodes, want 1", got)
	}
	if got := len(m.Nodes("formatNode")); got != 0 {
		t.Errorf("formatNode: got %d nodes, want 0", got)
	}
	if m.Has("coverage") {
		t.Errorf("coverage should be empty")
	}
	// Every declared field must appear in the result, empty or not.
	for name := range DublinCore.Fields {
		if _, ok := m[name]; !ok {
			t.Errorf("field %q missing from mapped result", name)
		}
	}
}

func TestCompileRejectsUnknownKind(t *testing.T) {
	s := Schema{
		Fields:     map[string]Field{"x": {Kind: Kind(99), Expr: "dc:title"}},
		Namespaces: DublinCoreNamespaces,
	}
	_, err := s.Compile()
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want SchemaError", err)
	}
	if se.Field != "x" {
		t.Errorf("got field %q, want x", se.Field)
	}
}

func TestCompileRejectsBadExpression(t *testing.T) {
	s := Schema{
		Fields:     map[string]Field{"x": {Kind: TextList, Expr: "dc:title]["}},
		Namespaces: DublinCoreNamespaces,
	}
	if _, err := s.Compile(); err == nil {
		t.Fatal("expected compile error for malformed expression")
	}
}

func TestAppendListDeduplicates(t *testing.T) {
	m := make(Mapped)
	m.AppendList("subject", "a", "b")
	m.AppendList("subject", "b", "c")
	if got, want := m.List("subject"), []string{"a", "b", "c"}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFindAttr(t *testing.T) {
	doc := mustParse(t, sampleDC)
	nodes := xmlquery.Find(doc, "//*[local-name() = 'person']")
	if len(nodes) != 1 {
		t.Fatalf("got %d person nodes, want 1", len(nodes))
	}
	if got, want := FindAttr(nodes[0], "about"), "http://example.org/staff/1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := FindAttr(nodes[0], "missing"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
