package diagnostic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	e "github.com/openhouse/portalcache/errors"
)

// API paths
const (
	FlowsPath    = "/api/care/diagnostic/flows"
	CompletePath = "/api/care/diagnostic/complete"
)

// HTTPSink posts reports to the portal API.
type HTTPSink struct {
	baseURL string
	http    *http.Client
}

func NewHTTPSink(baseURL string, httpClient *http.Client) *HTTPSink {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (h *HTTPSink) Deliver(ctx context.Context, r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+CompletePath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting diagnostic report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &e.StatusError{StatusCode: resp.StatusCode, URL: CompletePath}
	}
	return nil
}

// FetchCatalog reads the flow catalogue served by the portal API.
func FetchCatalog(ctx context.Context, baseURL string, httpClient *http.Client) (*Catalog, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+FlowsPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching diagnostic flows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &e.StatusError{StatusCode: resp.StatusCode, URL: FlowsPath}
	}

	var env struct {
		Data Catalog `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding diagnostic flows: %w", err)
	}
	if err := env.Data.Validate(); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
