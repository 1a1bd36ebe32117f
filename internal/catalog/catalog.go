// Package catalog queries a CKAN dataset catalog and selects the bulk-data
// resources that belong to one reference period.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrNoMatchingResource means no catalog resource matches the requested period.
	ErrNoMatchingResource = errors.New("no catalog resource matches the requested period")

	// ErrUpstream means the catalog answered with a failure.
	ErrUpstream = errors.New("catalog request failed")
)

// Resource is a catalog-advertised file.
type Resource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Location returns the address the resource is fetched from.
// CKAN mirrors sometimes publish only download_url or path.
func (r Resource) Location() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.DownloadURL != "":
		return r.DownloadURL
	default:
		return r.Path
	}
}

type packageResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Name      string     `json:"name"`
		Resources []Resource `json:"resources"`
	} `json:"result"`
}

// Client fetches dataset resources from a CKAN package_show endpoint.
type Client struct {
	endpoint string
	pattern  string
	http     *http.Client
}

// NewClient creates a catalog client. pattern receives the year through %d.
func NewClient(endpoint, pattern string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		pattern:  pattern,
		http:     &http.Client{Timeout: timeout},
	}
}

// DatasetID returns the dataset identifier for a year.
func (c *Client) DatasetID(year int) string {
	return fmt.Sprintf(c.pattern, year)
}

// Resources returns every resource listed by the dataset of the given year.
func (c *Client) Resources(ctx context.Context, year int) ([]Resource, error) {
	id := c.DatasetID(year)

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrUpstream, id, resp.StatusCode)
	}

	var body packageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUpstream, id, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: %s: success=false", ErrUpstream, id)
	}

	return body.Result.Resources, nil
}
