// Package channels narrows the notification collector's transport
// dependency to the single method it needs, so callers can supply
// *http.Client directly or a test double without either depending on
// the other.
package channels

import "net/http"

// HTTPClient is the transport seam notification.Context is built
// against.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient adapts a standard *http.Client to HTTPClient.
type DefaultHTTPClient struct {
	client *http.Client
}

// NewDefaultHTTPClient wraps client, defaulting to http.DefaultClient
// if client is nil.
func NewDefaultHTTPClient(client *http.Client) *DefaultHTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &DefaultHTTPClient{client: client}
}

func (d *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req)
}
