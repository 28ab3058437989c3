package client

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// FaultKind classifies adapter level failures. Every kind is retryable from
// the orchestrator's point of view; the kinds only differ in logging.
type FaultKind int

const (
	// FaultSyntax means the endpoint returned XML we could not parse.
	FaultSyntax FaultKind = iota
	// FaultSocket means a network level error below HTTP.
	FaultSocket
	// FaultTransport means the request could not be completed, e.g. a
	// timeout or an unreachable host.
	FaultTransport
	// FaultBadResponse means the endpoint answered with an unusable HTTP
	// response.
	FaultBadResponse
)

func (k FaultKind) String() string {
	switch k {
	case FaultSyntax:
		return "syntax"
	case FaultSocket:
		return "socket"
	case FaultTransport:
		return "transport"
	case FaultBadResponse:
		return "bad-response"
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault wraps a transport or parse error with its classification.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("oaipmh %s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// classify wraps an error into a Fault with a best-effort kind.
func classify(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return &Fault{Kind: FaultSyntax, Err: err}
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return &Fault{Kind: FaultSocket, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &Fault{Kind: FaultTransport, Err: err}
	}
	return &Fault{Kind: FaultBadResponse, Err: err}
}

// ProtocolError is an error element in an OAI-PMH response, e.g.
// noRecordsMatch or badVerb. Some codes represent legitimate empty results
// and are mapped to empty enumerations by the client.
type ProtocolError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oaipmh error (%s): %s", e.Code, e.Message)
}

// isEmptyResult reports whether a protocol error stands for "nothing to
// enumerate" rather than a failure.
func isEmptyResult(e *ProtocolError) bool {
	return e.Code == "noRecordsMatch" || e.Code == "noSetHierarchy"
}
