package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/miku/oaicat/schema"
)

const oaiHead = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
<responseDate>2015-10-31T12:00:00Z</responseDate>`

// testServer fakes an endpoint with two pages of identifiers, one set and
// one full record.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("verb") {
		case "Identify":
			fmt.Fprint(w, oaiHead+`
<Identify>
  <repositoryName>Example Repository</repositoryName>
  <baseURL>http://example.org/oai</baseURL>
</Identify>
</OAI-PMH>`)
		case "ListIdentifiers":
			if q.Get("resumptionToken") == "page-2" {
				fmt.Fprint(w, oaiHead+`
<ListIdentifiers>
  <header><identifier>oai:example.org:3</identifier><datestamp>2015-03-01</datestamp></header>
  <resumptionToken/>
</ListIdentifiers>
</OAI-PMH>`)
				return
			}
			if q.Get("metadataPrefix") != "oai_dc" {
				fmt.Fprint(w, oaiHead+`<error code="cannotDisseminateFormat">bad prefix</error></OAI-PMH>`)
				return
			}
			fmt.Fprint(w, oaiHead+`
<ListIdentifiers>
  <header><identifier>oai:example.org:1</identifier><datestamp>2015-01-01</datestamp></header>
  <header status="deleted"><identifier>oai:example.org:2</identifier><datestamp>2015-02-01</datestamp></header>
  <resumptionToken>page-2</resumptionToken>
</ListIdentifiers>
</OAI-PMH>`)
		case "ListSets":
			fmt.Fprint(w, oaiHead+`
<ListSets>
  <set><setSpec>math</setSpec><setName>Mathematics</setName></set>
</ListSets>
</OAI-PMH>`)
		case "GetRecord":
			if q.Get("identifier") == "oai:example.org:gone" {
				fmt.Fprint(w, oaiHead+`<error code="idDoesNotExist">unknown</error></OAI-PMH>`)
				return
			}
			if q.Get("identifier") == "oai:example.org:bare" {
				fmt.Fprint(w, oaiHead+`
<GetRecord><record>
  <header status="deleted"><identifier>oai:example.org:bare</identifier></header>
</record></GetRecord>
</OAI-PMH>`)
				return
			}
			fmt.Fprint(w, oaiHead+`
<GetRecord><record>
  <header><identifier>oai:example.org:1</identifier><datestamp>2015-01-01</datestamp></header>
  <metadata>
    <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"
               xmlns:dc="http://purl.org/dc/elements/1.1/">
      <dc:title>First</dc:title>
      <dc:date>2015-01-01</dc:date>
    </oai_dc:dc>
  </metadata>
</record></GetRecord>
</OAI-PMH>`)
		default:
			fmt.Fprint(w, oaiHead+`<error code="badVerb">nope</error></OAI-PMH>`)
		}
	}))
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := schema.DublinCore.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return New(endpoint, c)
}

func TestIdentify(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	id, err := c.Identify(context.Background())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if got, want := id.RepositoryName, "Example Repository"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListIdentifiersFollowsResumption(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	var ids []string
	err := c.EachIdentifier(context.Background(), ListArgs{}, func(h Header) error {
		ids = append(ids, h.Identifier)
		return nil
	})
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	want := []string{"oai:example.org:1", "oai:example.org:2", "oai:example.org:3"}
	if !cmp.Equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestListIdentifiersEmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, oaiHead+`<error code="noRecordsMatch">nothing</error></OAI-PMH>`)
	}))
	defer ts.Close()
	c := testClient(t, ts.URL)
	it := c.ListIdentifiers(context.Background(), ListArgs{})
	if it.Next() {
		t.Fatal("expected no headers")
	}
	if err := it.Err(); err != nil {
		t.Errorf("noRecordsMatch should not be an error, got %v", err)
	}
}

func TestListSets(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	sets, err := c.ListSets(context.Background())
	if err != nil {
		t.Fatalf("list sets: %v", err)
	}
	want := []Set{{Spec: "math", Name: "Mathematics"}}
	if !cmp.Equal(sets, want) {
		t.Errorf("got %v, want %v", sets, want)
	}
}

func TestGetRecord(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	rec, err := c.GetRecord(context.Background(), "oai:example.org:1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got, want := rec.Header.Identifier, "oai:example.org:1"; got != want {
		t.Errorf("identifier: got %q, want %q", got, want)
	}
	if rec.Mapped == nil {
		t.Fatal("expected mapped metadata")
	}
	if got, want := rec.Mapped.First("title"), "First"; got != want {
		t.Errorf("title: got %q, want %q", got, want)
	}
}

func TestGetRecordWithoutMetadata(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	rec, err := c.GetRecord(context.Background(), "oai:example.org:bare")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Mapped != nil {
		t.Errorf("expected nil mapping for a record without metadata")
	}
	if got, want := rec.Header.Status, "deleted"; got != want {
		t.Errorf("status: got %q, want %q", got, want)
	}
}

func TestGetRecordProtocolError(t *testing.T) {
	ts := testServer(t)
	defer ts.Close()
	c := testClient(t, ts.URL)
	_, err := c.GetRecord(context.Background(), "oai:example.org:gone")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want ProtocolError", err)
	}
	if got, want := pe.Code, "idDoesNotExist"; got != want {
		t.Errorf("code: got %q, want %q", got, want)
	}
}

func TestFetchClassifiesBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	c := testClient(t, ts.URL)
	c.HTTP = http.DefaultClient // no retries, the status is deterministic
	_, err := c.Identify(context.Background())
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("got %v, want Fault", err)
	}
	if f.Kind != FaultBadResponse {
		t.Errorf("kind: got %s, want %s", f.Kind, FaultBadResponse)
	}
}

func TestFetchClassifiesGarbage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not oai")
	}))
	defer ts.Close()
	c := testClient(t, ts.URL)
	_, err := c.Identify(context.Background())
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("got %v, want Fault", err)
	}
	if f.Kind != FaultSyntax {
		t.Errorf("kind: got %s, want %s", f.Kind, FaultSyntax)
	}
}

func TestClassify(t *testing.T) {
	if got := classify(errors.New("weird")).Kind; got != FaultBadResponse {
		t.Errorf("got %s, want %s", got, FaultBadResponse)
	}
}

func TestRecordURL(t *testing.T) {
	c := &Client{Endpoint: "http://example.org/oai", Prefix: "oai_dc"}
	got := c.RecordURL("oai:example.org:1")
	want := "http://example.org/oai?identifier=oai%3Aexample.org%3A1&metadataPrefix=oai_dc&verb=GetRecord"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
