// Package oaicat harvests metadata records from OAI-PMH endpoints and turns
// them into normalized catalog packages.
package oaicat

import "fmt"

const (
	AppName = "oaicat"
	Version = "0.1.0"
)

// UserAgent is sent with every request to a remote endpoint.
var UserAgent = fmt.Sprintf("%s/%s (https://github.com/miku/oaicat)", AppName, Version)
