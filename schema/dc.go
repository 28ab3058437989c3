package schema

// Namespaces needs to cover every namespace appearing in harvested documents
// or those parts will not be found at all.
var DublinCoreNamespaces = map[string]string{
	"oai_dc": "http://www.openarchives.org/OAI/2.0/oai_dc/",
	"dc":     "http://purl.org/dc/elements/1.1/",
	"foaf":   "http://xmlns.com/foaf/0.1/",
	"rdfs":   "http://www.w3.org/2000/01/rdf-schema#",
	"fp":     "http://downlode.org/Code/RDF/File_Properties/schema#",
	"wn":     "http://xmlns.com/wordnet/1.6/",
}

// DublinCore describes oai_dc records with embedded RDF extensions for
// rights, publisher, contributor and file format descriptions. The rights,
// publisher, contributor and hasFormat elements are kept as raw nodes since
// their structure varies too much for flat extraction.
var DublinCore = Schema{
	Fields: map[string]Field{
		"title":           {TextList, "oai_dc:dc/dc:title/text()"},
		"creator":         {TextList, "oai_dc:dc/dc:creator/text()"},
		"subject":         {TextList, "oai_dc:dc/dc:subject/text()"},
		"description":     {TextList, "oai_dc:dc/dc:description/text()"},
		"date":            {TextList, "oai_dc:dc/dc:date/text()"},
		"type":            {TextList, "oai_dc:dc/dc:type/text()"},
		"format":          {TextList, "oai_dc:dc/dc:format/text()"},
		"identifier":      {TextList, "oai_dc:dc/dc:identifier/text()"},
		"source":          {TextList, "oai_dc:dc/dc:source/text()"},
		"language":        {TextList, "oai_dc:dc/dc:language/text()"},
		"relation":        {TextList, "oai_dc:dc/dc:relation/text()"},
		"coverage":        {TextList, "oai_dc:dc/dc:coverage/text()"},
		"rightsNode":      {RawNode, "oai_dc:dc/dc:rights"},
		"publisherNode":   {RawNode, "oai_dc:dc/dc:publisher"},
		"contributorNode": {RawNode, "oai_dc:dc/dc:contributor"},
		"formatNode":      {RawNode, "oai_dc:dc/dc:hasFormat"},
	},
	Namespaces: DublinCoreNamespaces,
}

// MustCompile compiles a schema and panics on declaration errors. Use for
// package level schema values only.
func MustCompile(s Schema) *Compiled {
	c, err := s.Compile()
	if err != nil {
		panic(err)
	}
	return c
}
