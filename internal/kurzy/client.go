// Package kurzy is a client for the kurzy.cz exchange rate list.
package kurzy

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/bike-order-form/internal/domain/rate"
)

// DefaultURL is the CNB rate list published by kurzy.cz.
const DefaultURL = "https://data.kurzy.cz/json/meny/b6.json"

// maxBodySize caps the feed document; the real list is a few kilobytes.
const maxBodySize = 1 << 20

var _ rate.Provider = (*Client)(nil)

// Client fetches the rate list over HTTP. It does not retry.
type Client struct {
	http *http.Client
	url  string
}

// NewClient returns a Client for url. A nil httpClient means
// http.DefaultClient.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if url == "" {
		url = DefaultURL
	}
	return &Client{http: httpClient, url: url}
}

// URL returns the feed endpoint.
func (c *Client) URL() string {
	return c.url
}

// Fetch downloads and decodes the rate list.
func (c *Client) Fetch(ctx context.Context) (*rate.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get rate list")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("get rate list: unexpected status %d", resp.StatusCode)
	}

	tbl, err := Decode(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return tbl, nil
}
