// Package client implements a minimal OAI-PMH client for the verbs the
// harvester needs: Identify, ListIdentifiers, ListSets and GetRecord.
// Resumption tokens are followed transparently; list results arrive through
// iterators so that callers can commit work as it is discovered.
package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/sethgrid/pester"

	"github.com/miku/oaicat"
	"github.com/miku/oaicat/schema"
)

// DefaultTimeout bounds every request to the remote endpoint. A stuck
// endpoint must not hang a whole harvest job.
const DefaultTimeout = 30 * time.Second

// DefaultPrefix is the metadata prefix this harvester understands.
const DefaultPrefix = "oai_dc"

// Doer abstracts the HTTP client, cf. https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to one OAI-PMH endpoint.
type Client struct {
	Endpoint  string
	Prefix    string
	UserAgent string
	Schema    *schema.Compiled
	HTTP      Doer
}

// New returns a client with a retrying HTTP transport and the default
// Dublin Core schema compiled in sc.
func New(endpoint string, sc *schema.Compiled) *Client {
	hc := pester.New()
	hc.Timeout = DefaultTimeout
	hc.MaxRetries = 3
	hc.Backoff = pester.ExponentialBackoff
	hc.RetryOnHTTP429 = true
	return &Client{
		Endpoint:  endpoint,
		Prefix:    DefaultPrefix,
		UserAgent: oaicat.UserAgent,
		Schema:    sc,
		HTTP:      hc,
	}
}

// Identity is the relevant part of an Identify response.
type Identity struct {
	RepositoryName string `xml:"repositoryName"`
	BaseURL        string `xml:"baseURL"`
}

// Header is a record header as returned by ListIdentifiers and GetRecord.
type Header struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
}

// Set is one entry of the set hierarchy.
type Set struct {
	Spec string `xml:"setSpec"`
	Name string `xml:"setName"`
}

// Record is a full record: header plus mapped metadata. Mapped is nil when
// the record carries no metadata at all, e.g. for deleted records.
type Record struct {
	Header Header
	Mapped schema.Mapped
}

// ListArgs bound an enumeration by time window and set.
type ListArgs struct {
	From  *time.Time
	Until *time.Time
	Set   string
}

const utcLayout = "2006-01-02T15:04:05Z"

func (a ListArgs) values(prefix string) url.Values {
	vs := url.Values{}
	vs.Set("metadataPrefix", prefix)
	if a.From != nil {
		vs.Set("from", a.From.UTC().Format(utcLayout))
	}
	if a.Until != nil {
		vs.Set("until", a.Until.UTC().Format(utcLayout))
	}
	if a.Set != "" {
		vs.Set("set", a.Set)
	}
	return vs
}

type envelope struct {
	XMLName xml.Name       `xml:"OAI-PMH"`
	Error   *ProtocolError `xml:"error"`
	Identify *struct {
		Identity
	} `xml:"Identify"`
	ListIdentifiers *struct {
		Headers         []Header `xml:"header"`
		ResumptionToken string   `xml:"resumptionToken"`
	} `xml:"ListIdentifiers"`
	ListSets *struct {
		Sets            []Set  `xml:"set"`
		ResumptionToken string `xml:"resumptionToken"`
	} `xml:"ListSets"`
	GetRecord *struct {
		Record struct {
			Header   Header `xml:"header"`
			Metadata struct {
				Inner string `xml:",innerxml"`
			} `xml:"metadata"`
		} `xml:"record"`
	} `xml:"GetRecord"`
}

// fetch performs one request and decodes the envelope. Errors are
// classified; a protocol level error comes back as *ProtocolError.
func (c *Client) fetch(ctx context.Context, verb string, vals url.Values) (*envelope, error) {
	vals.Set("verb", verb)
	link := fmt.Sprintf("%s?%s", c.Endpoint, vals.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return nil, &Fault{Kind: FaultTransport, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, &Fault{
			Kind: FaultBadResponse,
			Err:  fmt.Errorf("HTTP %d while fetching %s", resp.StatusCode, link),
		}
	}
	var env envelope
	if err := xml.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &Fault{Kind: FaultSyntax, Err: err}
	}
	if env.Error != nil {
		return nil, env.Error
	}
	return &env, nil
}

// Identify fetches the repository self-description.
func (c *Client) Identify(ctx context.Context) (*Identity, error) {
	env, err := c.fetch(ctx, "Identify", url.Values{})
	if err != nil {
		return nil, err
	}
	if env.Identify == nil {
		return nil, &Fault{Kind: FaultBadResponse, Err: fmt.Errorf("missing Identify element")}
	}
	id := env.Identify.Identity
	return &id, nil
}

// ListIdentifiers enumerates record headers within the given bounds. The
// enumeration is lazy and not restartable: a mid-stream fault ends it, but
// headers already delivered remain valid.
func (c *Client) ListIdentifiers(ctx context.Context, args ListArgs) *HeaderIterator {
	return &HeaderIterator{ctx: ctx, c: c, args: args}
}

// HeaderIterator walks ListIdentifiers pages. Usage:
//
//	it := client.ListIdentifiers(ctx, args)
//	for it.Next() {
//		h := it.Header()
//	}
//	if err := it.Err() ...
type HeaderIterator struct {
	ctx     context.Context
	c       *Client
	args    ListArgs
	buf     []Header
	cur     Header
	token   string
	started bool
	done    bool
	err     error
}

// Next advances the iterator, fetching the next page when needed.
func (it *HeaderIterator) Next() bool {
	for {
		if len(it.buf) > 0 {
			it.cur, it.buf = it.buf[0], it.buf[1:]
			return true
		}
		if it.done {
			return false
		}
		var vals url.Values
		if !it.started {
			vals = it.args.values(it.c.Prefix)
		} else {
			vals = url.Values{}
			vals.Set("resumptionToken", it.token)
		}
		env, err := it.c.fetch(it.ctx, "ListIdentifiers", vals)
		it.started = true
		if err != nil {
			it.done = true
			if pe, ok := err.(*ProtocolError); ok && isEmptyResult(pe) {
				return false // nothing matched, not a failure
			}
			it.err = err
			return false
		}
		if env.ListIdentifiers == nil {
			it.done = true
			it.err = &Fault{Kind: FaultBadResponse, Err: fmt.Errorf("missing ListIdentifiers element")}
			return false
		}
		it.buf = env.ListIdentifiers.Headers
		it.token = strings.TrimSpace(env.ListIdentifiers.ResumptionToken)
		if it.token == "" {
			it.done = true
		}
		if len(it.buf) == 0 && it.done {
			return false
		}
	}
}

// Header returns the current header.
func (it *HeaderIterator) Header() Header { return it.cur }

// Err returns the fault that ended the enumeration, if any.
func (it *HeaderIterator) Err() error { return it.err }

// EachIdentifier enumerates record headers and calls fn for each, so
// callers can commit discovered work immediately. A mid-stream fault is
// returned after all headers delivered so far have been handed out.
func (c *Client) EachIdentifier(ctx context.Context, args ListArgs, fn func(Header) error) error {
	it := c.ListIdentifiers(ctx, args)
	for it.Next() {
		if err := fn(it.Header()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ListSets enumerates the set hierarchy. An endpoint without sets yields an
// empty slice, not an error.
func (c *Client) ListSets(ctx context.Context) ([]Set, error) {
	var (
		sets  []Set
		token string
		first = true
	)
	for {
		vals := url.Values{}
		if !first {
			vals.Set("resumptionToken", token)
		}
		env, err := c.fetch(ctx, "ListSets", vals)
		first = false
		if err != nil {
			if pe, ok := err.(*ProtocolError); ok && isEmptyResult(pe) {
				return nil, nil
			}
			return sets, err
		}
		if env.ListSets == nil {
			return sets, &Fault{Kind: FaultBadResponse, Err: fmt.Errorf("missing ListSets element")}
		}
		sets = append(sets, env.ListSets.Sets...)
		token = strings.TrimSpace(env.ListSets.ResumptionToken)
		if token == "" {
			return sets, nil
		}
	}
}

// GetRecord fetches one full record and maps its metadata through the
// configured schema.
func (c *Client) GetRecord(ctx context.Context, identifier string) (*Record, error) {
	vals := url.Values{}
	vals.Set("metadataPrefix", c.Prefix)
	vals.Set("identifier", identifier)
	env, err := c.fetch(ctx, "GetRecord", vals)
	if err != nil {
		return nil, err
	}
	if env.GetRecord == nil {
		return nil, &Fault{Kind: FaultBadResponse, Err: fmt.Errorf("missing GetRecord element")}
	}
	rec := &Record{Header: env.GetRecord.Record.Header}
	inner := strings.TrimSpace(env.GetRecord.Record.Metadata.Inner)
	if inner == "" {
		return rec, nil
	}
	doc, err := xmlquery.Parse(strings.NewReader(inner))
	if err != nil {
		return nil, &Fault{Kind: FaultSyntax, Err: err}
	}
	rec.Mapped = c.Schema.Read(doc)
	return rec, nil
}

// RecordURL returns the canonical GetRecord link for an identifier, used as
// the package URL in the catalog.
func (c *Client) RecordURL(identifier string) string {
	vals := url.Values{}
	vals.Set("verb", "GetRecord")
	vals.Set("identifier", identifier)
	vals.Set("metadataPrefix", c.Prefix)
	return fmt.Sprintf("%s?%s", c.Endpoint, vals.Encode())
}
