package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/types"
)

// API paths
const (
	ListPath     = "/api/purchaser/docs-list"
	DownloadPath = "/api/purchaser/documents/download"
)

// envelope is the portal API's standard response.
type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors []string        `json:"error"`
}

// DownloadResponse is the payload of the download endpoint.
type DownloadResponse struct {
	URL string `json:"url"`
}

type etagged struct {
	etag string
	docs []Document
}

/*
Client talks to the portal API. It implements types.Fetcher for document
listings, so it can back a cache Reader directly.

The last listing and its ETag are remembered per (unit, token). A listing
that has not changed comes back as 304 and the remembered one is reused.
*/
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	etags map[types.Key]etagged
}

var _ types.Fetcher[[]Document] = (*Client)(nil)

// NewClient builds a client for the API at baseURL. A nil httpClient gets a
// client with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		etags:   make(map[types.Key]etagged),
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	return c.http.Do(req)
}

// decode reads an API response into out, turning failures into StatusErrors.
// The token is never part of the reported URL.
func decode(resp *http.Response, path string, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}

	var env envelope
	jsonErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &e.StatusError{StatusCode: resp.StatusCode, URL: path}
		if jsonErr == nil {
			se.Messages = env.Errors
		}
		return se
	}
	if jsonErr != nil {
		return fmt.Errorf("decoding %s response: %w", path, jsonErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s data: %w", path, err)
	}
	return nil
}

// Fetch lists the documents visible to unitUID.
func (c *Client) Fetch(ctx context.Context, unitUID, token string) ([]Document, error) {
	key := types.Key{Resource: unitUID, Token: token}

	c.mu.Lock()
	last, haveLast := c.etags[key]
	c.mu.Unlock()

	q := url.Values{}
	q.Set("unitUid", unitUID)
	q.Set("token", token)

	resp, err := c.get(ctx, ListPath, q, last.etag)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && haveLast {
		if glog.V(2) {
			glog.Infof("listing for %s not modified", unitUID)
		}
		return last.docs, nil
	}

	var list ListResponse
	if err := decode(resp, ListPath, &list); err != nil {
		if e.IsUnauthorized(err) {
			c.forget(unitUID)
		}
		return nil, err
	}
	if list.Documents == nil {
		list.Documents = []Document{}
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.mu.Lock()
		c.etags[key] = etagged{etag: etag, docs: list.Documents}
		c.mu.Unlock()
	}
	return list.Documents, nil
}

// DownloadURL asks the API for a link to one document.
func (c *Client) DownloadURL(ctx context.Context, unitUID, token, docID string) (string, error) {
	q := url.Values{}
	q.Set("unitUid", unitUID)
	q.Set("token", token)
	q.Set("docId", docID)

	resp, err := c.get(ctx, DownloadPath, q, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var d DownloadResponse
	if err := decode(resp, DownloadPath, &d); err != nil {
		return "", err
	}
	return d.URL, nil
}

// forget drops remembered listings for a unit, whatever the token.
func (c *Client) forget(unitUID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.etags {
		if k.Resource == unitUID {
			delete(c.etags, k)
		}
	}
}

// Reset drops every remembered listing.
func (c *Client) Reset() {
	c.mu.Lock()
	c.etags = make(map[types.Key]etagged)
	c.mu.Unlock()
}
